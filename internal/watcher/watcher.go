package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates the file was created.
	OpCreate Operation = iota + 1
	// OpModify indicates the file was written.
	OpModify
	// OpDelete indicates the file was removed.
	OpDelete
	// OpRename indicates the file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a change to the source database or one of its journal files.
type Event struct {
	// Path is the base name of the changed file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// ChangeFunc handles one debounced batch of events.
type ChangeFunc func(ctx context.Context, batch []Event) error

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Options configures a SourceWatcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// SourceWatcher watches a SQLite database file for changes.
type SourceWatcher struct {
	dir      string
	names    map[string]struct{}
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for the database at dbPath. The file itself need
// not exist yet; its directory must.
func New(dbPath string, opts Options) (*SourceWatcher, error) {
	if dbPath == "" {
		return nil, apperrors.ValidationError("database path is required for watching", nil)
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base := filepath.Base(abs)
	return &SourceWatcher{
		dir: filepath.Dir(abs),
		// -shm is touched by readers too, so it is not a change signal.
		names: map[string]struct{}{
			base:              {},
			base + "-wal":     {},
			base + "-journal": {},
		},
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}, nil
}

// Dir returns the watched directory.
func (w *SourceWatcher) Dir() string {
	return w.dir
}

// Run watches until ctx is done, calling onChange once per debounced batch.
// Handler errors are logged and watching continues, unless the error is
// fatal, in which case Run returns it. Cancellation returns nil.
func (w *SourceWatcher) Run(ctx context.Context, onChange ChangeFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info("watch_started",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.debounce))

	d := NewDebouncer(w.debounce)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer d.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-fsw.Events:
				if !ok {
					return nil
				}
				if e, ok := w.convert(ev); ok {
					d.Add(e)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case batch, ok := <-d.Output():
				if !ok {
					return nil
				}
				w.logger.Info("source_changed", slog.Int("events", len(batch)))
				if err := onChange(gctx, batch); err != nil {
					if apperrors.IsFatal(err) {
						return err
					}
					w.logger.Warn("reindex_after_change_failed", apperrors.LogAttrs(err)...)
				}
			}
		}
	})

	err = g.Wait()
	w.logger.Info("watch_stopped")
	return err
}

// convert maps an fsnotify event onto an Event, dropping unrelated files
// and chmod-only changes.
func (w *SourceWatcher) convert(ev fsnotify.Event) (Event, bool) {
	name := filepath.Base(ev.Name)
	if _, ok := w.names[name]; !ok {
		return Event{}, false
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return Event{}, false
	}

	return Event{Path: name, Operation: op, Timestamp: time.Now()}, true
}
