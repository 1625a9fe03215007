package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a single request exceeds the
// whole memory budget, or when a non-blocking acquire cannot be served.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps canvases plus any fixed reservations, such as a
	// block cache.
	MemoryLimitBytes int64

	// MaxOpenTiles caps tiles held fully in memory after decompression.
	MaxOpenTiles int64

	// IOLimitBytesPerSec caps reads from the survey store.
	IOLimitBytesPerSec int64
}

// Controller manages the run-wide budgets.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	tileSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxOpenTiles > 0 {
		c.tileSem = semaphore.NewWeighted(cfg.MaxOpenTiles)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory blocks until bytes fit in the budget.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryLimitExceeded
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns bytes to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit, 0 if unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireTile blocks until another decompressed tile may be held.
func (c *Controller) AcquireTile(ctx context.Context) error {
	if c == nil || c.tileSem == nil {
		return nil
	}
	return c.tileSem.Acquire(ctx, 1)
}

// TryAcquireTile is AcquireTile without blocking.
func (c *Controller) TryAcquireTile() bool {
	if c == nil || c.tileSem == nil {
		return true
	}
	return c.tileSem.TryAcquire(1)
}

// ReleaseTile releases a slot taken by AcquireTile.
func (c *Controller) ReleaseTile() {
	if c == nil || c.tileSem == nil {
		return
	}
	c.tileSem.Release(1)
}

// AcquireIO waits until the rate limit admits bytes. Requests larger than
// one second of budget are admitted in chunks.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
