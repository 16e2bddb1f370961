package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	olderThan time.Duration
	calls     int
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.calls++
	f.olderThan = olderThan
	return nil
}

func TestIdempotencyCleanupJob_Handle(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewIdempotencyCleanupTask(72)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 72*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupJob_DefaultsRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := asynq.NewTask(TaskIdempotencyCleanup, []byte(`{}`))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)
}
