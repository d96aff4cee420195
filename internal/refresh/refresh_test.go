package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every tuesday", time.UTC, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunNowReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("*/15 * * * *", time.UTC, func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunNow(context.Background()), boom)
	assert.Equal(t, 1, s.Runs())
}

func TestRunNowSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	s, err := New("@hourly", time.UTC, func(context.Context) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background()) }()
	<-entered

	assert.ErrorIs(t, s.RunNow(context.Background()), ErrBusy)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNext(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, func(context.Context) error { return nil })
	require.NoError(t, err)

	next := s.Next()
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestStartRunsOnSchedule(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", time.UTC, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	<-s.Stop().Done()
}
