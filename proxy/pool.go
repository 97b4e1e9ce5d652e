// pool.go - bounded session workers
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package proxy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// pool is a fixed set of goroutines that each process one unit of
// work at a time. Submit blocks until a worker is idle; this is how
// the accept loop bounds the number of live sessions.
//
//	p := newPool[conn](n, func(i int, c conn) error {
//		... handle c
//		return nil
//	}, func(err error) {
//		... log err
//	})
//
//	p.Submit(ctx, c)
//	...
//	p.Close()
//	p.Wait()
//
// Unlike a WaitGroup style pool, errors are not harvested; each one
// is handed to 'ef' as it happens since a proxy runs indefinitely.
type pool[Work any] struct {
	stopped atomic.Bool
	wg      sync.WaitGroup
	ch      chan Work
	ef      func(err error)
}

func newPool[Work any](nworkers int, fp func(i int, w Work) error, ef func(err error)) *pool[Work] {
	if nworkers < 1 {
		nworkers = 1
	}

	p := &pool[Work]{
		ch: make(chan Work),
		ef: ef,
	}

	p.wg.Add(nworkers)
	for i := 0; i < nworkers; i++ {
		go func(i int) {
			defer p.wg.Done()
			for w := range p.ch {
				if err := p.run(i, w, fp); err != nil {
					p.ef(err)
				}
			}
		}(i)
	}
	return p
}

// one unit of work; a panic is turned into an error so that one bad
// session doesn't take the listener down.
func (p *pool[Work]) run(i int, w Work, fp func(i int, w Work) error) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("proxy: worker %d: panic: %v", i, e)
		}
	}()
	return fp(i, w)
}

// Submit hands 'w' to the next idle worker. It returns ctx.Err()
// if the context ends first.
func (p *pool[Work]) Submit(ctx context.Context, w Work) error {
	if p.stopped.Load() {
		return errPoolClosed
	}

	select {
	case p.ch <- w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends work submission. It is safe to call more than once but
// must not race with Submit.
func (p *pool[Work]) Close() {
	if !p.stopped.Swap(true) {
		close(p.ch)
	}
}

// Wait waits for the workers to finish; Close must be called first.
func (p *pool[Work]) Wait() {
	p.wg.Wait()
}
