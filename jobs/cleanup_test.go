package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingCleaner struct {
	calls []time.Duration
	err   error
}

func (c *recordingCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	c.calls = append(c.calls, olderThan)
	return c.err
}

func TestIdempotencyCleanupHandlerUsesPayloadRetention(t *testing.T) {
	cleaner := &recordingCleaner{}
	handler := NewIdempotencyCleanupHandler(cleaner, nil, discardLogger())

	task, err := NewIdempotencyCleanupTask(12 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []time.Duration{12 * time.Hour}, cleaner.calls)
}

func TestIdempotencyCleanupHandlerDefaultsRetention(t *testing.T) {
	cleaner := &recordingCleaner{}
	handler := NewIdempotencyCleanupHandler(cleaner, nil, discardLogger())

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []time.Duration{IdempotencyRetention}, cleaner.calls)
}
