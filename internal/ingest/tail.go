package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/felo/mailtail/internal/parser"
	"github.com/felo/mailtail/internal/tail"
)

// TailDeliveryLog follows the live delivery log and inserts each parsed
// batch into the table as it arrives.
func (ing *Ingestor) TailDeliveryLog(ctx context.Context) error {
	path := filepath.Join(ing.cfg.Log.Dir, ing.cfg.Log.Tail)
	tailer, batches, err := tail.New(path, ing.logger)
	if err != nil {
		return fmt.Errorf("failed to tail mail logfile: %w", err)
	}
	ing.logger.Info("tailing mail logfile", "path", path)

	go func() {
		for lines := range batches {
			mails, err := parser.ParseDeliveryLog(lines)
			lines.Close()
			if err != nil {
				ing.logger.Error("failed to parse emails while tailing", "path", path, "error", err)
				continue
			}
			if n := ing.db.InsertMails(mails); n > 0 {
				ing.logger.Info("inserted mails", "count", n, "path", path)
			}
		}
	}()

	if err := tailer.Run(ctx); err != nil {
		return err
	}
	ing.logger.Info("stopped tailing mail logfile", "path", path)
	return nil
}

// TailMailContent follows the live mail dump. Each batch of parsed
// subjects is held back for the configured delay before being applied, so
// the delivery-log pipeline has a chance to insert the matching records
// first. The delay is a mitigation, not a guarantee; a miss after the
// delay is dropped.
func (ing *Ingestor) TailMailContent(ctx context.Context) error {
	path := filepath.Join(ing.cfg.Mail.Dir, ing.cfg.Mail.Tail)
	tailer, batches, err := tail.New(path, ing.logger)
	if err != nil {
		return fmt.Errorf("failed to tail mail file: %w", err)
	}
	delay := ing.cfg.ParsingDelay()
	ing.logger.Info("tailing mail file", "path", path)

	go func() {
		for lines := range batches {
			mails, err := parser.ParseSubjects(lines)
			lines.Close()
			if err != nil {
				ing.logger.Error("failed to parse mail subjects while tailing", "path", path, "error", err)
				continue
			}
			go ing.applyAfter(ctx, delay, mails, path)
		}
	}()

	if err := tailer.Run(ctx); err != nil {
		return err
	}
	ing.logger.Info("stopped tailing mail file", "path", path)
	return nil
}

// applyAfter sleeps for the delay and then applies the subject updates. A
// cancelled context abandons the update; the table is rebuilt on restart
// anyway.
func (ing *Ingestor) applyAfter(ctx context.Context, delay time.Duration, mails []parser.Mail, path string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if n := ing.db.UpdateSubjects(mails); n > 0 {
		ing.logger.Info("updated subjects", "count", n, "path", path)
	}
}
