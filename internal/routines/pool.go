// Package routines provides a fixed size pool of go-routines.
package routines

import "sync"

// Pool runs queued functions concurrently in a fixed number of go-routines.
type Pool struct {
	workCh chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool with size go-routines.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}

	p := Pool{workCh: make(chan func())}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}

	return &p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for fn := range p.workCh {
		fn()
	}
}

// Queue schedules fn to be run in the pool.
// It blocks until a go-routine is ready to run it.
// Calling Queue after Wait panics.
func (p *Pool) Queue(fn func()) {
	p.workCh <- fn
}

// Wait waits until all queued functions finished and terminates the
// go-routines of the pool.
func (p *Pool) Wait() {
	p.once.Do(func() { close(p.workCh) })
	p.wg.Wait()
}
