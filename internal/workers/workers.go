package workers

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// OverrideEnv names the environment variable that pins the worker count.
const OverrideEnv = "PIPELINE_WORKERS"

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("workers: pool closed")

// Count returns the number of workers for a task type, derived from
// GOMAXPROCS so container CPU limits are respected.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks (decoder subprocesses)
//
// limit caps the result; 0 means no cap. PIPELINE_WORKERS overrides the
// computed value but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Task is a unit of background work. The context is the one given to Submit.
type Task func(ctx context.Context)

type job struct {
	ctx  context.Context
	task Task
}

// Pool runs submitted tasks on a fixed number of goroutines. The queue is
// unbounded so Submit never blocks the caller.
type Pool struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool

	wg sync.WaitGroup

	// OnQueueChange, when set, is called with the queue length after each change.
	OnQueueChange func(depth int)
}

// NewPool starts a pool with size workers (minimum 1).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues task. Tasks whose context is already done when a worker
// picks them up are skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job{ctx: ctx, task: task})
	p.notifyLocked()
	p.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting tasks, drops the queue and waits for running tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.notifyLocked()
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) notifyLocked() {
	if p.OnQueueChange != nil {
		p.OnQueueChange(len(p.queue))
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.notifyLocked()
		p.mu.Unlock()

		if j.ctx.Err() != nil {
			continue
		}
		j.task(j.ctx)
	}
}
