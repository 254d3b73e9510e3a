package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueTryPublishFull(t *testing.T) {
	q := NewQueue[int](1)
	require.NoError(t, q.TryPublish(1))
	require.ErrorIs(t, q.TryPublish(2), ErrQueueFull)
	require.Equal(t, uint64(1), q.Dropped())
	require.Equal(t, 1, q.Len())
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue[int](1)
	q.Close()
	q.Close()
	require.ErrorIs(t, q.TryPublish(1), ErrQueueClosed)
	require.ErrorIs(t, q.Publish(t.Context(), 1), ErrQueueClosed)
}

func TestQueueRunPreservesOrder(t *testing.T) {
	q := NewQueue[int](8)
	for i := range 5 {
		require.NoError(t, q.Publish(t.Context(), i))
	}
	q.Close()

	var got []int
	err := q.Run(t.Context(), func(v int) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestQueueRunStopsOnHandlerError(t *testing.T) {
	q := NewQueue[int](4)
	require.NoError(t, q.TryPublish(1))
	require.NoError(t, q.TryPublish(2))

	stop := errors.New("stop")
	calls := 0
	err := q.Run(t.Context(), func(int) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func TestQueuePublishBlocksUntilContextDone(t *testing.T) {
	q := NewQueue[int](1)
	require.NoError(t, q.TryPublish(1))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Publish(ctx, 2), context.DeadlineExceeded)
}
