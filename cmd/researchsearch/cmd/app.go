package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/researchsearch/internal/config"
	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
	"github.com/Aman-CERP/researchsearch/internal/host"
	"github.com/Aman-CERP/researchsearch/internal/source"
	"github.com/Aman-CERP/researchsearch/internal/store"
)

// appOptions selects which parts of the pipeline a command needs.
type appOptions struct {
	// index opens the search index and registers the content type.
	index bool
	// writer takes the cross-process writer lock on the index directory.
	writer bool
	// progress receives driver progress.
	progress finder.ProgressFunc
}

// app is the wired indexing pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	executor *source.Executor
	index    store.ItemIndex
	lock     *store.WriterLock
	adapter  *finder.Adapter
	driver   *finder.Driver
}

// openApp connects the source database, the host capabilities, the index and
// the driver. The caller must Close the returned app.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if opts.writer {
		a.lock = store.NewWriterLock(cfg.Index.Dir)
		if err := a.lock.TryLock(); err != nil {
			return nil, err
		}
	}

	a.db, err = source.Open(ctx, source.Options{Driver: cfg.Source.Driver, DSN: cfg.Source.DSN})
	if err != nil {
		return nil, err
	}
	a.executor = source.NewExecutor(a.db, cfg.Source.TablePrefix)

	extensions, err := newExtensionChecker(cfg, a.executor)
	if err != nil {
		return nil, err
	}

	settings := finder.Settings{
		Extension:      cfg.Adapter.Extension,
		TypeID:         cfg.Adapter.TypeID,
		Mime:           cfg.Adapter.Mime,
		Layout:         cfg.Adapter.Layout,
		Table:          cfg.Source.Table,
		Eligibility:    cfg.Source.Eligibility,
		RoutePrefix:    cfg.Adapter.RoutePrefix,
		EncodeEntities: cfg.Adapter.EncodeEntities,
	}

	var sink finder.IndexSink = previewSink{}
	if opts.index {
		a.index, err = store.OpenIndex(cfg.Index.Dir, cfg.Index.Backend)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeIndexCorrupt, "failed to open search index", err).
				WithDetail("dir", cfg.Index.Dir).
				WithSuggestion("Delete the index directory and run 'researchsearch index'")
		}
		sink = a.index

		if settings.TypeID == 0 {
			settings.TypeID, err = a.index.RegisterType(ctx, cfg.Adapter.TypeTitle)
			if err != nil {
				return nil, err
			}
			logger.Debug("content_type_registered",
				slog.String("title", cfg.Adapter.TypeTitle),
				slog.Int("type_id", settings.TypeID))
		}
	}

	a.adapter, err = finder.NewAdapter(settings, finder.AdapterDependencies{
		Executor:   a.executor,
		Sink:       sink,
		Extensions: extensions,
		Languages:  host.SiteLanguage{Default: cfg.Host.DefaultLanguage},
		Logger:     logger,
	})
	if err != nil {
		return nil, apperrors.InternalError("failed to create adapter", err)
	}

	driverOpts := []finder.DriverOption{
		finder.WithEnabled(cfg.Adapter.Enabled),
		finder.WithBatchSize(cfg.Adapter.BatchSize),
		finder.WithLogger(logger),
	}
	if a.index != nil {
		driverOpts = append(driverOpts, finder.WithReconciler(a.index))
	}
	if opts.progress != nil {
		driverOpts = append(driverOpts, finder.WithProgress(opts.progress))
	}
	a.driver, err = finder.NewDriver(a.adapter, driverOpts...)
	if err != nil {
		return nil, apperrors.InternalError("failed to create driver", err)
	}

	return a, nil
}

func newExtensionChecker(cfg *config.Config, exec *source.Executor) (finder.ExtensionChecker, error) {
	switch cfg.Host.Extensions {
	case host.ModeDatabase:
		return host.NewDatabaseExtensionRegistry(exec, cfg.Host.CacheTTL())
	default:
		return host.NewStaticExtensionRegistry(cfg.Host.EnabledExtensions), nil
	}
}

// Close releases the index, the database and the writer lock, in that order.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("index_close_failed", slog.String("error", err.Error()))
		}
		a.index = nil
	}
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
		a.lock = nil
	}
}

// previewSink backs commands that read the source without writing the index.
type previewSink struct{}

func (previewSink) Index(context.Context, *finder.IndexableItem) error {
	return apperrors.IndexError("index is not open in preview commands", fmt.Errorf("read-only"))
}
