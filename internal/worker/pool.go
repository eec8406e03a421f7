// Package worker runs store operations off the caller's goroutine.
//
// A Pool has a fixed number of lanes, one goroutine each. Jobs submitted with
// the same non-zero key always land on the same lane and run in submission
// order; unkeyed jobs are spread round-robin. Nothing is ordered across lanes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("worker pool closed")

const DefaultWorkers = 4

type Config struct {
	Workers int
	Logger  *slog.Logger
}

type job struct {
	ctx context.Context
	run func(context.Context)
}

// lane is an unbounded FIFO so that Submit never blocks the caller.
type lane struct {
	mu     sync.Mutex
	queue  []job
	signal chan struct{}
}

func (l *lane) push(j job) {
	l.mu.Lock()
	l.queue = append(l.queue, j)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *lane) pop() (job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return job{}, false
	}
	j := l.queue[0]
	l.queue[0] = job{}
	l.queue = l.queue[1:]
	return j, true
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

type Pool struct {
	lanes  []*lane
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
	next    atomic.Uint64

	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewPool starts cfg.Workers lane goroutines (DefaultWorkers when unset).
func NewPool(cfg Config) *Pool {
	n := cfg.Workers
	if n <= 0 {
		n = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		lanes:   make([]*lane, n),
		logger:  logger,
		closing: make(chan struct{}),
	}
	for i := range p.lanes {
		p.lanes[i] = &lane{signal: make(chan struct{}, 1)}
		p.wg.Add(1)
		go func(l *lane) {
			defer p.wg.Done()
			p.worker(l)
		}(p.lanes[i])
	}
	return p
}

func (p *Pool) worker(l *lane) {
	for {
		if j, ok := l.pop(); ok {
			j.run(j.ctx)
			continue
		}
		select {
		case <-l.signal:
		case <-p.closing:
			// Drain whatever was queued before Close.
			for {
				j, ok := l.pop()
				if !ok {
					return
				}
				j.run(j.ctx)
			}
		}
	}
}

// Workers returns the number of lanes.
func (p *Pool) Workers() int {
	return len(p.lanes)
}

// Pending returns the number of queued jobs not yet started.
func (p *Pool) Pending() int {
	n := 0
	for _, l := range p.lanes {
		n += l.len()
	}
	return n
}

type Stats struct {
	Workers   int
	Pending   int
	Completed uint64
	Failed    uint64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.Workers(),
		Pending:   p.Pending(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) laneFor(key int64) *lane {
	if key > 0 {
		return p.lanes[key%int64(len(p.lanes))]
	}
	return p.lanes[p.next.Add(1)%uint64(len(p.lanes))]
}

// Submit queues fn on the pool. Jobs sharing a positive key run in submission
// order; key 0 means no ordering requirement. fn receives a context carrying
// ctx's values but not its cancellation: submitted work always runs to
// completion.
func Submit[T any](p *Pool, ctx context.Context, key int64, fn func(context.Context) (T, error)) *Future[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		var zero T
		return Resolved(zero, ErrPoolClosed)
	}
	f := newFuture[T]()
	p.laneFor(key).push(job{
		ctx: context.WithoutCancel(ctx),
		run: func(jobCtx context.Context) {
			val, err := callJob(p.logger, jobCtx, fn)
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			f.resolve(val, err)
		},
	})
	return f
}

func callJob[T any](logger *slog.Logger, ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker job panicked", "panic", r)
			err = fmt.Errorf("worker: job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Close stops accepting jobs, runs everything already queued and waits for
// the lanes to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.closing)
	p.mu.Unlock()
	p.wg.Wait()
}
