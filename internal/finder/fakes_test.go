package finder

import (
	"context"
	"errors"
	"sync"

	sq "github.com/Masterminds/squirrel"
)

// fakeExecutor serves a fixed row set, honouring offset and limit only.
type fakeExecutor struct {
	mu       sync.Mutex
	rows     []Row
	countErr error
	fetchErr error
	queries  []string
}

func (f *fakeExecutor) Count(_ context.Context, q sq.SelectBuilder) (int, error) {
	f.record(q)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.rows), nil
}

func (f *fakeExecutor) FetchPage(_ context.Context, q sq.SelectBuilder, offset, limit int) ([]Row, error) {
	f.record(q)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := min(offset+limit, len(f.rows))
	return f.rows[offset:end], nil
}

func (f *fakeExecutor) record(q sq.SelectBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sql, _, _ := q.ToSql()
	f.queries = append(f.queries, sql)
}

// fakeSink records indexed items and can fail on a given id.
type fakeSink struct {
	items  []*IndexableItem
	failOn int
	ids    []int
	del    []int
}

var errSinkFailed = errors.New("sink failed")

func (s *fakeSink) Index(_ context.Context, item *IndexableItem) error {
	if s.failOn != 0 && item.ID == s.failOn {
		return errSinkFailed
	}
	s.items = append(s.items, item)
	return nil
}

func (s *fakeSink) ItemIDs(_ context.Context, _ int) ([]int, error) {
	return s.ids, nil
}

func (s *fakeSink) Delete(_ context.Context, _ int, ids []int) error {
	s.del = append(s.del, ids...)
	return nil
}

type fakeExtensions struct {
	enabled bool
	err     error
	calls   int
}

func (e *fakeExtensions) IsExtensionEnabled(_ context.Context, _ string) (bool, error) {
	e.calls++
	return e.enabled, e.err
}

func projectRow(id int, title, alias, content string) Row {
	return Row{
		"id":         int64(id),
		"title":      title,
		"alias":      alias,
		"content":    content,
		"start_date": "2024-03-01 09:30:00",
	}
}

func newTestAdapter(rows []Row, sink *fakeSink, ext *fakeExtensions) (*Adapter, *fakeExecutor) {
	exec := &fakeExecutor{rows: rows}
	settings := DefaultSettings()
	settings.TypeID = 3
	a, err := NewAdapter(settings, AdapterDependencies{
		Executor:   exec,
		Sink:       sink,
		Extensions: ext,
	})
	if err != nil {
		panic(err)
	}
	return a, exec
}
