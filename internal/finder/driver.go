package finder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// DefaultBatchSize is the GetItems page size used when none is configured.
const DefaultBatchSize = 50

// Progress reports how far a run has got.
type Progress struct {
	RunID   string
	Indexed int
	// Total is the eligible count, or 0 in delta mode where it is unknown.
	Total int
}

// ProgressFunc receives progress after every page.
type ProgressFunc func(Progress)

// RunOptions selects the run mode.
type RunOptions struct {
	// Since restricts the run to rows created at or after Since.
	// Delta runs page until an empty page and never prune.
	Since time.Time

	// Prune deletes indexed items of this type whose rows are no longer eligible.
	Prune bool
}

// RunResult summarizes a run.
type RunResult struct {
	RunID    string
	Skipped  bool
	Delta    bool
	Eligible int
	Fetched  int
	Indexed  int
	// Ignored counts items passed to IndexItem while the extension was
	// disabled. They never reach the sink.
	Ignored           int
	ExtensionDisabled bool
	Pruned            int
	Duration          time.Duration
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithEnabled sets the global enable flag. A disabled driver makes no adapter calls.
func WithEnabled(enabled bool) DriverOption {
	return func(d *Driver) { d.enabled = enabled }
}

// WithBatchSize sets the page size. Non-positive values keep the default.
func WithBatchSize(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) DriverOption {
	return func(d *Driver) { d.progress = fn }
}

// WithReconciler enables pruning through r.
func WithReconciler(r Reconciler) DriverOption {
	return func(d *Driver) { d.reconciler = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver runs an adapter the way the host indexer does.
// Runs must not overlap; callers serialize them.
type Driver struct {
	adapter    SourceAdapter
	enabled    bool
	batchSize  int
	progress   ProgressFunc
	reconciler Reconciler
	logger     *slog.Logger
}

// NewDriver creates a driver around adapter. It is enabled by default.
func NewDriver(adapter SourceAdapter, opts ...DriverOption) (*Driver, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}

	d := &Driver{
		adapter:   adapter,
		enabled:   true,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Enabled reports the global enable flag.
func (d *Driver) Enabled() bool {
	return d.enabled
}

// Run indexes every eligible item, or only recent ones in delta mode.
// It stops at the first failing item and returns that error.
func (d *Driver) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.NewString(), Delta: !opts.Since.IsZero()}
	log := d.logger.With(slog.String("run_id", result.RunID))

	if !d.enabled {
		result.Skipped = true
		log.Info("index_run_skipped", slog.String("reason", "adapter disabled"))
		return result, nil
	}

	if !d.adapter.Setup() {
		return result, apperrors.InternalError("adapter setup failed", nil)
	}

	total, err := d.adapter.GetEligibleCount(ctx)
	if err != nil {
		log.Error("eligible_count_failed", apperrors.LogAttrs(err)...)
		return result, err
	}
	result.Eligible = total

	extEnabled, err := d.adapter.ExtensionEnabled(ctx)
	if err != nil {
		log.Error("extension_check_failed", apperrors.LogAttrs(err)...)
		return result, err
	}
	result.ExtensionDisabled = !extEnabled
	if !extEnabled {
		log.Warn("extension_disabled", slog.String("effect", "items are not indexed"))
	}

	log.Info("index_run_started",
		slog.Int("eligible", total),
		slog.Bool("delta", result.Delta),
		slog.Int("batch_size", d.batchSize))

	var query *sq.SelectBuilder
	if result.Delta {
		q := d.adapter.BuildQuery(nil).Where(sq.GtOrEq{"a.created": opts.Since.UTC().Format(time.DateTime)})
		query = &q
	}

	seen := make(map[int]struct{}, total)
	for offset := 0; ; offset += d.batchSize {
		// Full runs are bounded by the count; delta runs page until empty.
		if !result.Delta && offset >= total {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		items, err := d.adapter.GetItems(ctx, offset, d.batchSize, query)
		if err != nil {
			log.Error("get_items_failed", append(apperrors.LogAttrs(err), slog.Int("offset", offset))...)
			return result, err
		}
		if len(items) == 0 {
			break
		}
		result.Fetched += len(items)

		for _, item := range items {
			seen[item.ID] = struct{}{}
			if err := d.adapter.IndexItem(ctx, item); err != nil {
				log.Error("item_index_failed", append(apperrors.LogAttrs(err), slog.Int("id", item.ID))...)
				return result, fmt.Errorf("index research project %d: %w", item.ID, err)
			}
			if extEnabled {
				result.Indexed++
			} else {
				result.Ignored++
			}
		}

		if d.progress != nil && extEnabled {
			p := Progress{RunID: result.RunID, Indexed: result.Indexed, Total: total}
			if result.Delta {
				p.Total = 0
			}
			d.progress(p)
		}
	}

	if opts.Prune && !result.Delta && d.reconciler != nil {
		pruned, err := d.prune(ctx, seen)
		if err != nil {
			log.Error("index_prune_failed", apperrors.LogAttrs(err)...)
			return result, err
		}
		result.Pruned = pruned
	}

	result.Duration = time.Since(start)
	log.Info("index_run_completed",
		slog.Int("indexed", result.Indexed),
		slog.Int("ignored", result.Ignored),
		slog.Int("pruned", result.Pruned),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// IndexOne reindexes a single item by id. indexed is false when the driver
// or the extension is disabled and nothing reached the sink.
func (d *Driver) IndexOne(ctx context.Context, id int) (indexed bool, err error) {
	if !d.enabled {
		d.logger.Info("index_one_skipped", slog.Int("id", id), slog.String("reason", "adapter disabled"))
		return false, nil
	}
	if !d.adapter.Setup() {
		return false, apperrors.InternalError("adapter setup failed", nil)
	}

	item, err := d.adapter.GetItem(ctx, id)
	if err != nil {
		return false, err
	}
	enabled, err := d.adapter.ExtensionEnabled(ctx)
	if err != nil {
		return false, err
	}
	if err := d.adapter.IndexItem(ctx, item); err != nil {
		return false, fmt.Errorf("index research project %d: %w", id, err)
	}
	if !enabled {
		d.logger.Info("index_one_skipped", slog.Int("id", id), slog.String("reason", "extension disabled"))
		return false, nil
	}
	d.logger.Info("item_indexed", slog.Int("id", id))
	return true, nil
}

// prune deletes indexed ids of the adapter's type that were not seen in this run.
func (d *Driver) prune(ctx context.Context, seen map[int]struct{}) (int, error) {
	typeID := d.adapter.TypeID()

	indexed, err := d.reconciler.ItemIDs(ctx, typeID)
	if err != nil {
		return 0, err
	}

	var stale []int
	for _, id := range indexed {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := d.reconciler.Delete(ctx, typeID, stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}
