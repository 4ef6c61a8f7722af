package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing a T
type Job[T any] interface {
	Execute(ctx context.Context) T
}

// JobFunc adapts a function to Job
type JobFunc[T any] func(ctx context.Context) T

func (f JobFunc[T]) Execute(ctx context.Context) T { return f(ctx) }

// Pool runs jobs on a fixed number of workers. Results arrive in completion order.
type Pool[T any] struct {
	workers   int
	jobQueue  chan Job[T]
	results   chan T
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	queueOnce sync.Once
	closeOnce sync.Once
}

// NewPool creates a pool bound to parent; cancelling parent stops the workers
func NewPool[T any](parent context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool[T]{
		workers:  workers,
		jobQueue: make(chan Job[T], workers*2),
		results:  make(chan T, workers*2),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job; it returns false once the pool is stopped
func (p *Pool[T]) Submit(job Job[T]) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait closes the queue and collects results until every worker exits.
// Submit must not be called after Wait. Results beyond the buffer are only
// drained here, so callers submitting many jobs should use Run.
func (p *Pool[T]) Wait() []T {
	p.closeQueue()
	return p.collect()
}

// Run starts the workers, feeds jobs while collecting results, and returns
// once every job has finished or the pool is stopped
func (p *Pool[T]) Run(jobs []Job[T]) []T {
	p.Start()
	go func() {
		defer p.closeQueue()
		for _, job := range jobs {
			if !p.Submit(job) {
				return
			}
		}
	}()
	return p.collect()
}

func (p *Pool[T]) collect() []T {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []T
	for result := range p.results {
		results = append(results, result)
	}
	p.cancel()
	return results
}

// Shutdown stops the workers immediately, dropping queued jobs
func (p *Pool[T]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
