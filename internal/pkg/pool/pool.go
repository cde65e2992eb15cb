package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pool runs submitted jobs on a fixed number of goroutines.
type Pool struct {
	jobs    chan func()
	wg      sync.WaitGroup
	closed  atomic.Bool
	closeCh chan struct{}
}

func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		jobs:    make(chan func(), n*2),
		closeCh: make(chan struct{}),
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case f := <-p.jobs:
			if f != nil {
				f()
			}
		case <-p.closeCh:
			return
		}
	}
}

// Submit queues f. It reports false when the pool is closed or ctx is done
// before f could be queued.
func (p *Pool) Submit(ctx context.Context, f func()) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case p.jobs <- f:
		return true
	case <-p.closeCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops the workers. Jobs already running finish; queued ones are dropped.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.closeCh)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}
