// Package coordinator runs a phase of per-item work over a fixed pool of
// workers and serializes the one header-parsing step that must not run
// concurrently.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stampcut/partition"
)

// Phase names a unit of parallel work.
type Phase string

const (
	// PhaseFootprint builds the footprint index over survey images.
	PhaseFootprint Phase = "footprint"
	// PhaseStitch builds the stamps over catalog targets.
	PhaseStitch Phase = "stitch"
)

// ErrIncomplete is returned when fewer workers finished than were spawned.
var ErrIncomplete = errors.New("coordinator: not all workers completed")

// Func processes one item. worker is the partition row that owns item.
// A non-nil error aborts the phase.
type Func func(ctx context.Context, worker, item int) error

// Stats describes a finished phase.
type Stats struct {
	Phase    Phase
	Items    int
	Workers  int
	Duration time.Duration
}

// Coordinator owns the worker count, the header lock and the completion
// counter of the running phase.
type Coordinator struct {
	workers int

	headerMu sync.Mutex

	mu        sync.Mutex
	completed int
}

// New creates a coordinator with the given number of workers.
func New(workers int) (*Coordinator, error) {
	if workers <= 0 {
		return nil, partition.ErrInvalidWorkers
	}
	return &Coordinator{workers: workers}, nil
}

// Workers returns the configured worker count.
func (c *Coordinator) Workers() int { return c.workers }

// ParseHeader runs fn while holding the header lock. fn should cover only
// the parse call itself.
func (c *Coordinator) ParseHeader(fn func() error) error {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	return fn()
}

// Run partitions items 0..n-1 round-robin over the workers and processes
// each row sequentially in its own goroutine. Workers with an empty row are
// not started. Run returns after every started worker has finished; the
// first error cancels the others.
func (c *Coordinator) Run(ctx context.Context, phase Phase, n int, fn Func) (Stats, error) {
	start := time.Now()

	table, err := partition.Partition(n, c.workers)
	if err != nil {
		return Stats{}, err
	}

	c.mu.Lock()
	c.completed = 0
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	spawned := 0
	for w, row := range table.Rows {
		if len(row) == 0 {
			continue
		}
		spawned++
		g.Go(func() error {
			for _, item := range row {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(gctx, w, item); err != nil {
					return fmt.Errorf("%s: item %d: %w", phase, item, err)
				}
			}
			c.done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if got := c.Completed(); got != spawned {
		return Stats{}, fmt.Errorf("%w: %d of %d", ErrIncomplete, got, spawned)
	}

	return Stats{
		Phase:    phase,
		Items:    n,
		Workers:  spawned,
		Duration: time.Since(start),
	}, nil
}

func (c *Coordinator) done() {
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

// Completed returns the number of workers of the current phase that have
// finished their row.
func (c *Coordinator) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
