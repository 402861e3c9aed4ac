package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felo/mailtail/internal/config"
	"github.com/felo/mailtail/internal/maildb"
	"github.com/felo/mailtail/internal/parser"
	"github.com/felo/mailtail/internal/source"
)

// Ingestor feeds parsed log records into the correlation table, both from
// the one-shot bootstrap pass over the configured historical files and
// from the two live tail pipelines.
type Ingestor struct {
	db     *maildb.DB
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new Ingestor.
func New(db *maildb.DB, cfg *config.Config, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Bootstrap reads every configured historical file once, in configured
// order, delivery logs before mail content. A file that cannot be opened
// or read is fatal; the table would silently miss its records otherwise.
func (ing *Ingestor) Bootstrap(ctx context.Context) error {
	ing.logger.Info("loading configured email into db")
	inserted, err := ing.loadDeliveryLogs(ctx)
	if err != nil {
		return err
	}
	ing.logger.Info("inserted emails into mail db", "count", inserted)

	updated, err := ing.loadSubjects(ctx)
	if err != nil {
		return err
	}
	ing.logger.Info("inserted subjects into mail db", "count", updated)

	ing.logger.Info("loading emails done")
	return nil
}

func (ing *Ingestor) loadDeliveryLogs(ctx context.Context) (int, error) {
	total := 0
	for _, file := range ing.cfg.Log.Files {
		// Cancellation point, so a long bootstrap can stop between files.
		if err := ctx.Err(); err != nil {
			return total, err
		}
		path := filepath.Join(ing.cfg.Log.Dir, file)
		ing.logger.Info("loading mail logs", "path", path)
		mails, err := parseFile(path, parser.ParseDeliveryLog)
		if err != nil {
			return total, err
		}
		total += ing.db.InsertMails(mails)
	}
	return total, nil
}

func (ing *Ingestor) loadSubjects(ctx context.Context) (int, error) {
	total := 0
	for _, file := range ing.cfg.Mail.Files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		path := filepath.Join(ing.cfg.Mail.Dir, file)
		ing.logger.Info("loading mail subjects", "path", path)
		mails, err := parseFile(path, parser.ParseSubjects)
		if err != nil {
			return total, err
		}
		total += ing.db.UpdateSubjects(mails)
	}
	return total, nil
}

// parseFile opens path as a LineSource and runs one of the two parsers
// over it.
func parseFile(path string, parse func(source.Lines) ([]parser.Mail, error)) ([]parser.Mail, error) {
	lines, err := source.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader for %s: %w", path, err)
	}
	defer lines.Close()

	mails, err := parse(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return mails, nil
}
