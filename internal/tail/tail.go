package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felo/mailtail/internal/source"
)

const (
	// batchCapacity bounds the event-to-parser handoff channel. A full
	// channel blocks the tailer rather than dropping data; the OS buffers
	// filesystem notifications in the meantime.
	batchCapacity = 5

	retryAttempts = 5
	retryInterval = 2 * time.Second
)

// errEventIgnored marks filesystem events the tailer doesn't act on.
var errEventIgnored = errors.New("ignored filesystem event")

// ReadError wraps a failure to read or re-watch the tailed file, usually a
// rotation race where the file vanished between the event and the open.
// Read errors are retried; everything else is log-only.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Tailer follows a single file through appends and rotations, emitting a
// LineSource over each chunk of newly-available bytes. The offset always
// equals the number of bytes already delivered downstream for the current
// incarnation of the file and resets to 0 when the file is replaced.
type Tailer struct {
	path    string
	offset  int64
	watcher *fsnotify.Watcher
	out     chan source.Lines
	logger  *slog.Logger
}

// New opens path, records its current length as the starting offset (the
// bootstrap pass has already consumed everything before it) and subscribes
// to filesystem notifications. The returned channel carries one LineSource
// per successful read and is closed when Run returns.
func New(path string, logger *slog.Logger) (*Tailer, <-chan source.Lines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tail target %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat tail target %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher for %s: %w", path, err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	t := &Tailer{
		path:    path,
		offset:  info.Size(),
		watcher: watcher,
		out:     make(chan source.Lines, batchCapacity),
		logger:  logger,
	}
	return t, t.out, nil
}

// Run consumes filesystem events until the watcher closes or ctx is
// cancelled, neither of which is an error. Read failures are retried up to
// retryAttempts times; exhaustion ends this tailer with an error.
func (t *Tailer) Run(ctx context.Context) error {
	defer t.watcher.Close()
	defer close(t.out)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-t.watcher.Errors:
			if !ok {
				t.logger.Info("tailer ended", "path", t.path)
				return nil
			}
			t.logger.Error("filesystem watch error", "path", t.path, "error", err)

		case event, ok := <-t.watcher.Events:
			if !ok {
				t.logger.Info("tailer ended", "path", t.path)
				return nil
			}
			lines, err := t.handleEvent(event)
			var readErr *ReadError
			switch {
			case err == nil:
			case errors.Is(err, errEventIgnored):
				t.logger.Debug("ignoring filesystem event", "path", t.path, "op", event.Op.String())
				continue
			case errors.As(err, &readErr):
				t.logger.Warn("tail read failed", "path", t.path, "error", readErr.Err)
				if err := t.recover(ctx); err != nil {
					return err
				}
				continue
			default:
				t.logger.Error("unexpected tail error", "path", t.path, "error", err)
				continue
			}
			if lines == nil {
				continue
			}
			select {
			case t.out <- lines:
			case <-ctx.Done():
				lines.Close()
				return nil
			}
		}
	}
}

// handleEvent classifies one filesystem notification. Create, remove and
// rename mean the file was rotated or replaced: reset the offset,
// re-subscribe the watch (the old inode's watch died with it) and read the
// new file from the start. Write reads from the current offset. Chmod
// carries no data.
func (t *Tailer) handleEvent(event fsnotify.Event) (source.Lines, error) {
	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		t.offset = 0
		if err := t.rewatch(); err != nil {
			return nil, &ReadError{Path: t.path, Err: err}
		}
		return t.read()
	case event.Op.Has(fsnotify.Write):
		return t.read()
	case event.Op.Has(fsnotify.Chmod):
		return nil, nil
	default:
		return nil, errEventIgnored
	}
}

// read opens the file, seeks to the current offset and returns a
// LineSource over the bytes appended since, advancing the offset to the
// file's current length. The caller owns the returned Lines and must
// close it.
func (t *Tailer) read() (source.Lines, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, &ReadError{Path: t.path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ReadError{Path: t.path, Err: err}
	}
	size := info.Size()
	if size < t.offset {
		// Truncated in place, start over.
		t.offset = 0
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		f.Close()
		return nil, &ReadError{Path: t.path, Err: err}
	}
	t.offset = size
	return source.FromFile(f), nil
}

// rewatch drops and re-adds the watch subscription, following logrotate's
// move-and-recreate pattern.
func (t *Tailer) rewatch() error {
	_ = t.watcher.Remove(t.path)
	return t.watcher.Add(t.path)
}

// recover retries the watch subscription after a failed read, sleeping a
// fixed interval between attempts. On success the offset is reset to 0 for
// the file's new incarnation. Exhausting every attempt is fatal for this
// tailer.
func (t *Tailer) recover(ctx context.Context) error {
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryInterval):
		}
		if err := t.rewatch(); err != nil {
			t.logger.Warn("failed to reset watch", "path", t.path, "attempt", attempt, "error", err)
			continue
		}
		t.offset = 0
		return nil
	}
	return fmt.Errorf("failed to tail %s after %d attempts", t.path, retryAttempts)
}
