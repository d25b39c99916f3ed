package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", Options{})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	w, err := New(filepath.Join(t.TempDir(), "research.db"), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestSourceWatcher_Convert(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "research.db"), Options{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		file   string
		op     fsnotify.Op
		want   Operation
		accept bool
	}{
		{"db write", "research.db", fsnotify.Write, OpModify, true},
		{"wal write", "research.db-wal", fsnotify.Write, OpModify, true},
		{"journal create", "research.db-journal", fsnotify.Create, OpCreate, true},
		{"db removed", "research.db", fsnotify.Remove, OpDelete, true},
		{"db renamed", "research.db", fsnotify.Rename, OpRename, true},
		{"shm ignored", "research.db-shm", fsnotify.Write, 0, false},
		{"other file", "notes.txt", fsnotify.Write, 0, false},
		{"chmod ignored", "research.db", fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := w.convert(fsnotify.Event{Name: filepath.Join(dir, tt.file), Op: tt.op})
			assert.Equal(t, tt.accept, ok)
			if ok {
				assert.Equal(t, tt.want, e.Operation)
				assert.Equal(t, tt.file, e.Path)
			}
		})
	}
}

func TestSourceWatcher_RunTriggersOnDatabaseWrite(t *testing.T) {
	// Given: a watcher on a database file
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "research.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("v1"), 0644))

	w, err := New(dbPath, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, batch []Event) error {
			batches <- batch
			return nil
		})
	}()

	// When: an unrelated file and then the database are written
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(dbPath, []byte("v2"), 0644))

	// Then: the handler sees only the database change
	select {
	case batch := <-batches:
		require.NotEmpty(t, batch)
		for _, e := range batch {
			assert.Equal(t, "research.db", e.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change batch")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestSourceWatcher_FatalHandlerErrorStopsRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "research.db")
	w, err := New(dbPath, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	fatal := apperrors.New(apperrors.ErrCodeIndexCorrupt, "index corrupt", errors.New("bad page"))
	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background(), func(context.Context, []Event) error {
			return fatal
		})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(dbPath, []byte("v1"), 0644))

	select {
	case err := <-done:
		assert.Equal(t, apperrors.ErrCodeIndexCorrupt, apperrors.GetCode(err))
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on fatal error")
	}
}

func TestSourceWatcher_RunMissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "research.db"), Options{})
	require.NoError(t, err)

	err = w.Run(context.Background(), func(context.Context, []Event) error { return nil })
	assert.Error(t, err)
}
