// Package batch runs screening tasks on a bounded pool of workers.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is a unit of work. It receives the context it was submitted with.
type TaskFunc func(ctx context.Context) error

type task struct {
	id  string
	fn  TaskFunc
	ctx context.Context
}

// Pool is a fixed set of workers draining a bounded queue
type Pool struct {
	config  Config
	tasks   chan *task
	quit    chan struct{}
	mu      sync.RWMutex // guards closed and the send side of tasks
	closed  bool
	once    sync.Once
	workers sync.WaitGroup
	pending sync.WaitGroup
	nextID  atomic.Uint64
	stats   statsCollector
}

// NewPool creates a pool and starts its workers
func NewPool(config Config) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		config: config,
		tasks:  make(chan *task, config.QueueSize),
		quit:   make(chan struct{}),
	}
	for i := 0; i < config.Workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for t := range p.tasks {
		p.execute(t)
	}
}

// execute runs a task with panic recovery
func (p *Pool) execute(t *task) {
	defer p.pending.Done()

	if err := t.ctx.Err(); err != nil {
		p.stats.cancelled.Add(1)
		p.report(&TaskError{TaskID: t.id, Err: err})
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.stats.panicked.Add(1)
			p.report(&TaskError{
				TaskID: t.id,
				Err:    fmt.Errorf("panic: %v", r),
				Stack:  string(debug.Stack()),
			})
		}
		p.stats.recordCompletion(time.Since(start))
	}()

	if err := t.fn(t.ctx); err != nil {
		p.stats.failed.Add(1)
		p.report(&TaskError{TaskID: t.id, Err: err})
	}
}

func (p *Pool) report(err *TaskError) {
	if p.config.ErrorHandler != nil {
		p.config.ErrorHandler(err)
	}
}

// Submit queues fn, blocking while the queue is full. It returns the
// context's error if ctx ends first, or ErrPoolClosed once Stop was called.
func (p *Pool) Submit(ctx context.Context, fn TaskFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	t := &task{
		id:  fmt.Sprintf("task-%d", p.nextID.Add(1)),
		fn:  fn,
		ctx: ctx,
	}

	p.pending.Add(1)
	select {
	case p.tasks <- t:
		p.stats.submitted.Add(1)
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return ctx.Err()
	case <-p.quit:
		p.pending.Done()
		return ErrPoolClosed
	}
}

// Wait blocks until every submitted task has finished
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Stop stops accepting tasks and lets the workers drain the queue. It
// returns ErrForcedShutdown if the queue is not drained within
// ShutdownTimeout; a zero timeout waits indefinitely.
func (p *Pool) Stop() error {
	var shutdownErr error

	p.once.Do(func() {
		// Unblock submitters before taking the write lock
		close(p.quit)

		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.workers.Wait()
			close(done)
		}()

		if p.config.ShutdownTimeout == 0 {
			<-done
			return
		}

		timer := time.NewTimer(p.config.ShutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			shutdownErr = ErrForcedShutdown
		}
	})

	return shutdownErr
}

// IsClosed reports whether Stop has been called
func (p *Pool) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return p.stats.snapshot(p.config.Workers, len(p.tasks))
}
