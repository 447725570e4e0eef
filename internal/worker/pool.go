// Package worker runs request handlers on a bounded set of goroutines.
package worker

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool executes submitted tasks with at most Size running at once.
// A failing or panicking task is logged and never affects other tasks.
type Pool struct {
	group   errgroup.Group
	size    int
	logger  *zap.Logger
	running atomic.Int64
	failed  atomic.Int64
}

// NewPool creates a Pool running at most size tasks concurrently.
//
// Precondition: size >= 1; logger must be non-nil.
func NewPool(size int, logger *zap.Logger) *Pool {
	p := &Pool{size: size, logger: logger.Named("worker")}
	p.group.SetLimit(size)
	return p
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Failed returns how many tasks returned an error or panicked.
func (p *Pool) Failed() int { return int(p.failed.Load()) }

// Submit queues task under name. It blocks while Size tasks are already running.
//
// Postcondition: task will run exactly once on a pool goroutine.
func (p *Pool) Submit(name string, task func() error) {
	p.group.Go(func() error {
		p.running.Add(1)
		defer p.running.Add(-1)
		if err := p.run(task); err != nil {
			p.failed.Add(1)
			p.logger.Warn("task aborted",
				zap.String("task", name),
				zap.Error(err),
			)
		}
		return nil
	})
}

func (p *Pool) run(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}
