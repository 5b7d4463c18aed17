package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultQueueSize   = 16
	DefaultIdleTimeout = time.Minute
)

var (
	ErrQueueFull = errors.New("worker: queue full")
	ErrStopped   = errors.New("worker: pool stopped")
)

type PoolOptions[J any] struct {
	MaxConcurrency int
	QueueSize      int
	// IdleTimeout is how long a key's loop waits for another job before it
	// exits and releases its queue.
	IdleTimeout time.Duration
	Handle      func(context.Context, J)
}

// Pool keeps one serial job loop per key. Jobs for the same key run in
// enqueue order; jobs for different keys run concurrently up to
// MaxConcurrency. Loops are started on demand and retire when idle.
type Pool[K comparable, J any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	opts   PoolOptions[J]

	mu     sync.Mutex
	queues map[K]chan J
	wg     sync.WaitGroup
}

func NewPool[K comparable, J any](ctx context.Context, opts PoolOptions[J]) *Pool[K, J] {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	workersCtx, cancel := context.WithCancel(ctx)
	return &Pool[K, J]{
		ctx:    workersCtx,
		cancel: cancel,
		sem:    make(chan struct{}, opts.MaxConcurrency),
		opts:   opts,
		queues: make(map[K]chan J),
	}
}

// Enqueue never blocks. It returns ErrQueueFull when key already has
// QueueSize jobs waiting and ErrStopped after Stop.
func (p *Pool[K, J]) Enqueue(key K, job J) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return ErrStopped
	}
	q, ok := p.queues[key]
	if !ok {
		q = make(chan J, p.opts.QueueSize)
		p.queues[key] = q
		p.wg.Add(1)
		go p.run(key, q)
	}
	select {
	case q <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool[K, J]) run(key K, q chan J) {
	defer p.wg.Done()
	idle := time.NewTimer(p.opts.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-q:
			select {
			case p.sem <- struct{}{}:
			case <-p.ctx.Done():
				return
			}
			func() {
				defer func() { <-p.sem }()
				p.opts.Handle(p.ctx, job)
			}()
			idle.Reset(p.opts.IdleTimeout)
		case <-idle.C:
			if p.retire(key, q) {
				return
			}
			idle.Reset(p.opts.IdleTimeout)
		}
	}
}

// retire drops key's queue if nothing was enqueued since the loop went
// idle. Enqueue sends under the same lock, so a retired queue is empty.
func (p *Pool[K, J]) retire(key K, q chan J) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(q) > 0 {
		return false
	}
	if p.queues[key] == q {
		delete(p.queues, key)
	}
	return true
}

// Keys reports how many per-key loops are running.
func (p *Pool[K, J]) Keys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

// Stop cancels every loop and waits for in-flight jobs to return.
func (p *Pool[K, J]) Stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}
