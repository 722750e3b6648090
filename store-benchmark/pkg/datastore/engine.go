package datastore

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// AsyncEngine executes backend calls. With zero threads calls run inline on
// the caller; otherwise a fixed pool of worker goroutines runs them. Do
// always waits for its call, so the caller's view stays synchronous.
type AsyncEngine struct {
	threads int
	tasks   chan func()
	limiter *rate.Limiter
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// NewAsyncEngine starts threads workers.
func NewAsyncEngine(threads int, cfg EngineConfig) *AsyncEngine {
	e := &AsyncEngine{threads: threads}
	if cfg.MaxOpsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxOpsPerSecond), cfg.Burst)
	}
	if threads > 0 {
		depth := cfg.QueueDepth
		if depth <= 0 {
			depth = DefaultEngineConfig().QueueDepth
		}
		e.tasks = make(chan func(), depth)
		for i := 0; i < threads; i++ {
			e.wg.Add(1)
			go e.worker()
		}
	}
	return e
}

// Threads returns the number of worker goroutines.
func (e *AsyncEngine) Threads() int {
	return e.threads
}

func (e *AsyncEngine) worker() {
	defer e.wg.Done()
	for task := range e.tasks {
		task()
	}
}

// Do runs fn and returns its error.
func (e *AsyncEngine) Do(ctx context.Context, fn func() error) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if e.tasks == nil {
		return fn()
	}

	done := make(chan error, 1)
	task := func() { done <- fn() }
	select {
	case e.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after queued calls finish.
func (e *AsyncEngine) Close() {
	e.closeOnce.Do(func() {
		if e.tasks != nil {
			close(e.tasks)
			e.wg.Wait()
		}
	})
}
