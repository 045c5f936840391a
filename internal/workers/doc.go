/*
Package workers sizes and runs the background workers that keep decoding off
the request path.

Count, ForCPU and ForIO derive a worker count from GOMAXPROCS, which Go sets
from the container CPU limit, rather than runtime.NumCPU, which reports the
host. PIPELINE_WORKERS pins the count.

Pool is a fixed set of goroutines draining an unbounded FIFO queue. Submit
never blocks, so a burst of rows scrolling into view only grows the queue.
Each task carries its own context; a task whose context was cancelled before
it started is skipped, which is how rows that scroll away give up pending
work:

	pool := workers.NewPool(workers.ForIO(16))
	defer pool.Close()

	_ = pool.Submit(rowCtx, func(ctx context.Context) {
		facts := enr.Enrich(ctx, path)
		// ...
	})
*/
package workers
