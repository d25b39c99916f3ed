package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

func TestNew_RejectsInvalidCron(t *testing.T) {
	// Given: a malformed cron expression
	// When: creating the scheduler
	_, err := New(Config{Cron: "every tuesday"}, func(context.Context) error { return nil }, nil)

	// Then: a configuration error is returned
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
}

func TestNew_RequiresTask(t *testing.T) {
	_, err := New(Config{Cron: "0 * * * *"}, nil, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestScheduler_RunOnStart(t *testing.T) {
	// Given: an hourly job configured to run on start
	var calls atomic.Int32
	ran := make(chan struct{}, 1)
	s, err := New(Config{Cron: "0 * * * *", RunOnStart: true}, func(context.Context) error {
		calls.Add(1)
		ran <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	// When: starting
	s.Start(context.Background())
	defer s.Stop()

	// Then: the job runs without waiting for the hour
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.Eventually(t, func() bool { return s.Info().Runs == 1 }, time.Second, 10*time.Millisecond)

	info := s.Info()
	assert.Equal(t, "reindex", info.Name)
	assert.Equal(t, "0 * * * *", info.Cron)
	assert.NotNil(t, info.LastRun)
	assert.Empty(t, info.LastError)
	assert.EqualValues(t, 1, calls.Load())
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s, err := New(Config{Name: "nightly", Cron: "0 3 * * *"}, func(context.Context) error {
		return apperrors.DataSourceError("database is locked", errors.New("SQLITE_BUSY"))
	}, nil)
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Stop()

	require.NoError(t, s.RunNow())

	assert.Eventually(t, func() bool { return s.Info().Runs == 1 }, 3*time.Second, 10*time.Millisecond)
	info := s.Info()
	assert.Contains(t, info.LastError, "database is locked")
	assert.False(t, info.Running)
	assert.NotNil(t, info.NextRun)
}

func TestScheduler_PassesStartContext(t *testing.T) {
	type key struct{}
	got := make(chan any, 1)
	s, err := New(Config{Cron: "0 * * * *", RunOnStart: true}, func(ctx context.Context) error {
		got <- ctx.Value(key{})
		return nil
	}, nil)
	require.NoError(t, err)

	s.Start(context.WithValue(context.Background(), key{}, "run-ctx"))
	defer s.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "run-ctx", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
