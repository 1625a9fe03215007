package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/partition"
)

func TestRunVisitsEveryItemOnce(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	const n = 7
	var mu sync.Mutex
	owner := make(map[int]int)

	stats, err := c.Run(context.Background(), PhaseStitch, n, func(_ context.Context, w, i int) error {
		mu.Lock()
		defer mu.Unlock()
		_, dup := owner[i]
		assert.False(t, dup, "item %d visited twice", i)
		owner[i] = w
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, PhaseStitch, stats.Phase)
	assert.Equal(t, n, stats.Items)
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 3, c.Completed())
	require.Len(t, owner, n)
	for i, w := range owner {
		assert.Equal(t, i%3, w)
	}
}

func TestRunSkipsEmptyRows(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var calls atomic.Int32
	stats, err := c.Run(context.Background(), PhaseFootprint, 2, func(context.Context, int, int) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, stats.Workers)

	stats, err = c.Run(context.Background(), PhaseFootprint, 0, func(context.Context, int, int) error {
		assert.Fail(t, "no items")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Workers)
	assert.Equal(t, 0, c.Completed())
}

func TestRunStopsOnError(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	boom := errors.New("boom")
	var after atomic.Int32
	_, err = c.Run(context.Background(), PhaseStitch, 100, func(ctx context.Context, w, i int) error {
		if i == 3 {
			return boom
		}
		if i > 50 {
			after.Add(1)
		}
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "item 3")
	assert.Less(t, after.Load(), int32(48))
}

func TestRunHonorsCancel(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Run(ctx, PhaseStitch, 10, func(context.Context, int, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseHeaderSerializes(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	var inside, peak atomic.Int32
	_, err = c.Run(context.Background(), PhaseFootprint, 40, func(context.Context, int, int) error {
		return c.ParseHeader(func() error {
			v := inside.Add(1)
			if v > peak.Load() {
				peak.Store(v)
			}
			time.Sleep(100 * time.Microsecond)
			inside.Add(-1)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestNewRejectsZeroWorkers(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, partition.ErrInvalidWorkers)
}
