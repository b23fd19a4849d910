package worker

import (
	"context"
	"sync"
)

// Task is one unit of work run by a Pool. It receives the pool context.
type Task[R any] func(ctx context.Context) R

// Pool runs tasks on a fixed number of goroutines and streams their
// outputs. A Pool is single use: once Close or Stop is called it accepts
// no more tasks.
type Pool[R any] struct {
	size   int
	tasks  chan Task[R]
	out    chan R
	group  sync.WaitGroup
	ctx    context.Context
	stop   context.CancelFunc
	mu     sync.RWMutex
	closed bool // intake closed; guarded by mu
	ended  sync.Once
}

// NewPool builds a pool of size goroutines bound to ctx. A size below one
// is raised to one. Cancelling ctx stops workers once their current task
// returns.
func NewPool[R any](ctx context.Context, size int) *Pool[R] {
	size = max(size, 1)
	ctx, stop := context.WithCancel(ctx)
	return &Pool[R]{
		size:  size,
		tasks: make(chan Task[R], size*2),
		out:   make(chan R, size*2),
		ctx:   ctx,
		stop:  stop,
	}
}

// Size reports how many goroutines the pool runs
func (p *Pool[R]) Size() int { return p.size }

// Start launches the workers
func (p *Pool[R]) Start() {
	p.group.Add(p.size)
	for range p.size {
		go p.run()
	}
}

func (p *Pool[R]) run() {
	defer p.group.Done()
	for {
		var task Task[R]
		var ok bool
		select {
		case <-p.ctx.Done():
			return
		case task, ok = <-p.tasks:
		}
		if !ok {
			return
		}
		res := task(p.ctx)
		select {
		case p.out <- res:
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit queues a task and blocks while the queue is full. It reports
// false once the pool is closed or stopped.
func (p *Pool[R]) Submit(task Task[R]) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

// Results streams task outputs in completion order. The channel closes
// after Close once every queued task has run, or right after Stop.
// Submitting more tasks than the queue holds requires a concurrent reader.
func (p *Pool[R]) Results() <-chan R {
	return p.out
}

// Close stops intake. Queued tasks still run.
func (p *Pool[R]) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	go func() {
		p.group.Wait()
		p.finish()
	}()
}

// Drain closes the pool and returns every remaining output
func (p *Pool[R]) Drain() []R {
	p.Close()
	var all []R
	for r := range p.out {
		all = append(all, r)
	}
	return all
}

// Stop cancels the pool, waits for running tasks and discards the queue
func (p *Pool[R]) Stop() {
	p.stop()
	p.group.Wait()
	p.finish()
}

func (p *Pool[R]) finish() {
	p.ended.Do(func() { close(p.out) })
}
