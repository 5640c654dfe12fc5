package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_relay_bot/internal/pkg/telegram"
)

func newTestPool(workers int) *Pool {
	p := NewPool(workers)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestPoolRunsAllParts(t *testing.T) {
	plan := NewPlan(20*PartSize + 5)
	var done atomic.Int64

	pool := newTestPool(4)
	handle, err := pool.RunPlan(context.Background(), plan, "file.bin",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			done.Add(int64(length))
			return nil
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, plan.TotalSize, done.Load())
	assert.Equal(t, plan.PartCount, handle.Parts)
	assert.Equal(t, "file.bin", handle.Name)
	assert.GreaterOrEqual(t, handle.ID, int64(0))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 8
	plan := NewPlan(64 * PartSize)

	var inFlight, peak atomic.Int32
	pool := newTestPool(workers)
	_, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return nil
		}, nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestPoolPartFailureFailsPlan(t *testing.T) {
	plan := NewPlan(10 * PartSize)
	boom := errors.New("boom")

	pool := newTestPool(2)
	_, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			if part == 3 {
				return boom
			}
			return nil
		}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestPoolFloodWaitRestartsWholePlan(t *testing.T) {
	plan := NewPlan(6 * PartSize)

	var mu sync.Mutex
	flooded := false
	fileIDs := map[int64]int64{} // fileID → bytes

	pool := newTestPool(1)
	handle, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			mu.Lock()
			defer mu.Unlock()
			if !flooded && part == 2 {
				flooded = true
				return &telegram.FloodWaitError{RetryAfter: time.Second}
			}
			fileIDs[fileID] += int64(length)
			return nil
		}, nil)

	require.NoError(t, err)
	// Повтор идёт с нуля: итоговый файл собирает полный объём байт.
	assert.Equal(t, plan.TotalSize, fileIDs[handle.ID])
}

func TestPoolFloodWaitRetryCap(t *testing.T) {
	plan := NewPlan(PartSize)

	var attempts atomic.Int32
	pool := newTestPool(1)
	_, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			attempts.Add(1)
			return &telegram.FloodWaitError{RetryAfter: time.Millisecond}
		}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, int32(maxFloodRetries), attempts.Load())
}

func TestPoolProgressReportsCumulativeBytes(t *testing.T) {
	plan := NewPlan(5 * PartSize)

	var mu sync.Mutex
	var last int64
	pool := newTestPool(1)
	_, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			return nil
		},
		func(done, total int64) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, plan.TotalSize, total)
			assert.Greater(t, done, last)
			last = done
		})

	require.NoError(t, err)
	assert.Equal(t, plan.TotalSize, last)
}

func TestPoolProgressPanicSwallowed(t *testing.T) {
	plan := NewPlan(3 * PartSize)

	pool := newTestPool(1)
	_, err := pool.RunPlan(context.Background(), plan, "f",
		func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
			return nil
		},
		func(done, total int64) {
			panic("progress sink is broken")
		})

	require.NoError(t, err)
}
