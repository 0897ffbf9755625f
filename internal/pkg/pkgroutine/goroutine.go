package pkgroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// ErrNotStarted is returned by Go when the task could not get a slot before
// its context ended.
var ErrNotStarted = errors.New("goroutine not started")

// ErrPanicked is collected when a task panics.
var ErrPanicked = errors.New("goroutine panicked")

// Manager runs functions in goroutines with a configurable concurrency limit.
//
// It collects errors returned by tasks and can be waited on using Wait.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   sync.WaitGroup
	sema chan struct{}
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go schedules f once a slot is free. It waits for the slot under waitCtx,
// typically the caller's request, and returns ErrNotStarted if waitCtx ends
// first. The task then runs under runCtx. A started task always runs; it is
// expected to watch runCtx itself so it can release what it holds.
func (g *Manager) Go(waitCtx, runCtx context.Context, f func(ctx context.Context) error) error {
	select {
	case g.sema <- struct{}{}:
	case <-waitCtx.Done():
		slog.WarnContext(waitCtx, "goroutine canceled before start", "because", waitCtx.Err())
		return fmt.Errorf("%w: %w", ErrNotStarted, waitCtx.Err())
	case <-runCtx.Done():
		slog.WarnContext(runCtx, "goroutine canceled before start", "because", runCtx.Err())
		return fmt.Errorf("%w: %w", ErrNotStarted, runCtx.Err())
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			<-g.sema

			if rvr := recover(); rvr != nil {
				slog.ErrorContext(runCtx, "panic occurred in goroutine", "panic", rvr, "stack", string(debug.Stack()))
				g.collect(fmt.Errorf("%w: %v", ErrPanicked, rvr))
			}
		}()

		if err := f(runCtx); err != nil {
			g.collect(err)
		}
	}()

	return nil
}

func (g *Manager) collect(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

// Wait blocks until all scheduled goroutines finish and returns any collected errors.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
