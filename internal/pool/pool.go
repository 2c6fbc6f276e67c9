// Copyright (C) 2023 Andrew Dunstall
//
// Seastore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Seastore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package pool implements the named worker pool owned by the client.
//
// The pool runs async operation callbacks and other background work on a
// fixed set of workers. Shutdown is two phase: Shutdown stops intake and
// drains queued tasks, ShutdownNow drops whatever is still queued.
package pool

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Submit after Shutdown has been called.
	ErrClosed = errors.New("pool: closed")

	// ErrSaturated is returned by Submit when the task queue is full.
	ErrSaturated = errors.New("pool: saturated")
)

// Pool is a fixed-size worker pool with a bounded task queue.
type Pool struct {
	name string

	tasks chan func()

	// drop is closed by ShutdownNow to make workers abandon queued tasks.
	drop     chan struct{}
	dropOnce sync.Once

	closed *atomic.Bool
	// mu serializes intake with Shutdown so a task is never sent on the
	// closed tasks channel.
	mu sync.Mutex

	// done is closed once every worker has exited.
	done chan struct{}
	wg   sync.WaitGroup

	logger *zap.Logger
}

// New creates a pool of size workers with a queue of queue pending tasks.
func New(name string, size, queue int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}

	p := &Pool{
		name:   name,
		tasks:  make(chan func(), queue),
		drop:   make(chan struct{}),
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
		logger: logger,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return p
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Submit queues task for execution on a pool worker.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrSaturated
	}
}

// Shutdown stops intake. Queued tasks keep draining until the workers
// exit or ShutdownNow is called. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	close(p.tasks)
}

// AwaitTermination blocks until every worker has exited or the timeout
// elapses, reporting whether the pool terminated in time.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ShutdownNow stops intake and drops any tasks still queued. In-flight
// tasks are not interrupted.
func (p *Pool) ShutdownNow() {
	p.Shutdown()
	p.dropOnce.Do(func() {
		close(p.drop)
	})
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		// Checked first so a queued task never races a drop request.
		select {
		case <-p.drop:
			return
		default:
		}

		select {
		case <-p.drop:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(
				"task panic",
				zap.String("pool", p.name),
				zap.Any("panic", r),
			)
		}
	}()
	task()
}
