package local

import (
	"context"
	"sync"
)

// Task is a unit of work run by a pool goroutine. It should return once
// ctx is done.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
}

func NewPool(numWorkers int) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan Task),
	}
}

// Start launches the pool goroutines. Every task receives ctx.
func (p *Pool) Start(ctx context.Context) {
	for range p.numWorkers {
		p.wg.Go(func() {
			for task := range p.tasks {
				task(ctx)
			}
		})
	}
}

// Submit blocks until a pool goroutine picks up task. Submitting after
// Close panics.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Close stops accepting tasks and waits for running ones to return.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
