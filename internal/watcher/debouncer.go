package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events so a burst of writes triggers one reindex.
// Events for the same path within the window are merged:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing (a transient journal file)
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY (the file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]Event
	order   []string
	timer   *time.Timer
	output  chan []Event
	stopped bool
}

// NewDebouncer creates a debouncer that emits a batch once no event has
// arrived for window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]Event),
		output:  make(chan []Event, 4),
	}
}

// Add records an event and restarts the window.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[event.Path]; ok {
		op, keep := merge(prev.Operation, event.Operation)
		if !keep {
			delete(d.pending, event.Path)
		} else {
			event.Operation = op
			d.pending[event.Path] = event
		}
	} else {
		d.pending[event.Path] = event
		d.order = append(d.order, event.Path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// merge combines two operations on one path. keep is false when they cancel.
func merge(prev, next Operation) (op Operation, keep bool) {
	switch {
	case prev == OpCreate && next == OpModify:
		return OpCreate, true
	case prev == OpCreate && next == OpDelete:
		return 0, false
	case prev == OpDelete && next == OpCreate:
		return OpModify, true
	default:
		return next, true
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, path := range d.order {
		if e, ok := d.pending[path]; ok {
			batch = append(batch, e)
			delete(d.pending, path)
		}
	}
	d.pending = make(map[string]Event)
	d.order = nil

	if len(batch) == 0 {
		return
	}

	select {
	case d.output <- batch:
	default:
		// A reindex is already queued; it will see these writes too.
		slog.Debug("debounce_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches, in first-seen path order.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop discards pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
