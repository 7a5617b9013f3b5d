// Package pool bounds the number of tables worked concurrently. Tasks are
// self-contained: each opens its own session and owns its table's file
// namespace, so the pool coordinates nothing but task count and failure.
package pool

import (
	"sync"
)

// Pool runs named tasks with at most size running at once. The first
// failure stops further dispatch; tasks already running finish and are
// reaped by Wait.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	firstErr error
	failed   string // task name of the first failure
}

// New creates a pool of the given size. Size is clamped to at least one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit queues a task. It blocks until a worker slot is free, which keeps
// the submission loop itself as the dispatch throttle. After a failure,
// submissions are dropped.
func (p *Pool) Submit(name string, task func() error) {
	p.mu.Lock()
	dead := p.firstErr != nil
	p.mu.Unlock()
	if dead {
		return
	}

	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		if err := task(); err != nil {
			p.mu.Lock()
			if p.firstErr == nil {
				p.firstErr = err
				p.failed = name
			}
			p.mu.Unlock()
		}
	}()
}

// Wait blocks until every submitted task has finished and returns the
// first error observed. It is the barrier between restore stages: stage
// N+1 is not submitted until Wait on stage N returns.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// Failed reports the name of the first failed task, if any.
func (p *Pool) Failed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
