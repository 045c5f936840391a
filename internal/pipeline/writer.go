package pipeline

import (
	"context"
	"errors"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/enricher"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

type command interface{ isCommand() }

type loadCmd struct {
	entries   []catalog.Entry
	installed chan struct{}
}

// visibleCmd and hiddenCmd are answered on reply with nil or ErrUnknownRow,
// judged against the list the writer holds when it handles them.
type visibleCmd struct {
	id    int64
	reply chan error
}

type hiddenCmd struct {
	id    int64
	reply chan error
}

type factsDone struct {
	key   taskKey
	facts enricher.Facts
}

type thumbDone struct {
	key       taskKey
	has       bool
	abandoned bool
}

func (loadCmd) isCommand()    {}
func (visibleCmd) isCommand() {}
func (hiddenCmd) isCommand()  {}
func (factsDone) isCommand()  {}
func (thumbDone) isCommand()  {}

type taskState int

const (
	taskIdle taskState = iota
	taskScheduled
	taskDone
)

// taskKey identifies the task run a result belongs to. Results whose key
// does not match the row's current generation and epoch are stale.
type taskKey struct {
	generation uint64
	id         int64
	epoch      uint64
}

// rowTasks is the writer's bookkeeping for one row. Only the writer
// goroutine touches it.
type rowTasks struct {
	path   string
	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
	facts  taskState
	thumb  taskState
}

// run is the single writer. It owns tasks and is the only goroutine that
// modifies rows.
func (p *Pipeline) run() {
	tasks := make(map[int64]*rowTasks)

	defer func() {
		for _, t := range tasks {
			if t.cancel != nil {
				t.cancel()
			}
		}
		close(p.done)
		p.closeSubscribers()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case c := <-p.cmds:
			switch c := c.(type) {
			case loadCmd:
				tasks = p.install(tasks, c.entries)
				close(c.installed)
			case visibleCmd:
				t, ok := tasks[c.id]
				if ok {
					p.schedule(t, c.id)
				}
				c.reply <- known(ok)
			case hiddenCmd:
				t, ok := tasks[c.id]
				if ok {
					p.abandon(t)
				}
				c.reply <- known(ok)
			case factsDone:
				p.applyFacts(tasks, c)
			case thumbDone:
				p.applyThumbnail(tasks, c)
			}
		}
	}
}

func known(ok bool) error {
	if ok {
		return nil
	}
	return ErrUnknownRow
}

func (p *Pipeline) install(old map[int64]*rowTasks, entries []catalog.Entry) map[int64]*rowTasks {
	for _, t := range old {
		p.abandon(t)
	}

	rows := make([]RowState, len(entries))
	index := make(map[int64]int, len(entries))
	tasks := make(map[int64]*rowTasks, len(entries))

	for i, e := range entries {
		rows[i] = RowState{Entry: e, Facts: enricher.PendingFacts}
		index[e.ID] = i

		t := &rowTasks{path: e.Path}
		if thumbnailGated(e.Path) {
			rows[i].ThumbnailReady = true
			t.thumb = taskDone
		}
		tasks[e.ID] = t
	}

	p.mu.Lock()
	p.rows = rows
	p.index = index
	p.generation++
	p.mu.Unlock()

	logging.Info("Pipeline loaded %d rows", len(rows))
	p.publish(RowUpdate{Kind: UpdateLoaded})
	return tasks
}

func (p *Pipeline) schedule(t *rowTasks, id int64) {
	if t == nil || (t.facts != taskIdle && t.thumb != taskIdle) {
		return
	}

	if t.ctx == nil || t.ctx.Err() != nil {
		t.ctx, t.cancel = context.WithCancel(p.ctx)
		t.epoch++
	}

	p.mu.RLock()
	key := taskKey{generation: p.generation, id: id, epoch: t.epoch}
	p.mu.RUnlock()

	if t.facts == taskIdle {
		t.facts = taskScheduled
		p.submit(t.ctx, func(ctx context.Context) { p.runFacts(ctx, key, t.path) })
	}
	if t.thumb == taskIdle {
		t.thumb = taskScheduled
		p.submit(t.ctx, func(ctx context.Context) { p.runThumbnail(ctx, key, t.path) })
	}
}

func (p *Pipeline) submit(ctx context.Context, task func(context.Context)) {
	if err := p.pool.Submit(ctx, task); err != nil {
		logging.Debug("Pipeline task not submitted: %v", err)
	}
}

// abandon cancels the row's unfinished tasks and makes them schedulable
// again.
func (p *Pipeline) abandon(t *rowTasks) {
	if t == nil || t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	t.ctx = nil

	if t.facts == taskScheduled {
		t.facts = taskIdle
		metrics.PipelineTasksTotal.WithLabelValues("facts", "abandoned").Inc()
	}
	if t.thumb == taskScheduled {
		t.thumb = taskIdle
		metrics.PipelineTasksTotal.WithLabelValues("thumbnail", "abandoned").Inc()
	}
}

// current returns the row's tasks if key still refers to the live run.
func (p *Pipeline) current(tasks map[int64]*rowTasks, key taskKey) *rowTasks {
	p.mu.RLock()
	gen := p.generation
	p.mu.RUnlock()

	t := tasks[key.id]
	if key.generation != gen || t == nil || t.epoch != key.epoch || t.ctx == nil {
		return nil
	}
	return t
}

func (p *Pipeline) applyFacts(tasks map[int64]*rowTasks, r factsDone) {
	t := p.current(tasks, r.key)
	if t == nil || t.facts != taskScheduled {
		return
	}
	t.facts = taskDone
	metrics.PipelineTasksTotal.WithLabelValues("facts", "done").Inc()

	row, ok := p.update(r.key.id, func(row *RowState) {
		row.Entry = row.Entry.WithFacts(r.facts)
		row.Facts = r.facts
		row.FactsReady = true
	})
	if ok {
		p.publish(RowUpdate{Kind: UpdateFacts, ID: r.key.id, Row: row})
	}
	p.release(t)
}

func (p *Pipeline) applyThumbnail(tasks map[int64]*rowTasks, r thumbDone) {
	t := p.current(tasks, r.key)
	if t == nil || t.thumb != taskScheduled {
		return
	}
	if r.abandoned {
		t.thumb = taskIdle
		metrics.PipelineTasksTotal.WithLabelValues("thumbnail", "abandoned").Inc()
		return
	}
	t.thumb = taskDone
	metrics.PipelineTasksTotal.WithLabelValues("thumbnail", "done").Inc()

	row, ok := p.update(r.key.id, func(row *RowState) {
		row.ThumbnailReady = true
		row.HasThumbnail = r.has
	})
	if ok {
		p.publish(RowUpdate{Kind: UpdateThumbnail, ID: r.key.id, Row: row})
	}
	p.release(t)
}

// release drops the row context once both tasks are done.
func (p *Pipeline) release(t *rowTasks) {
	if t.facts == taskDone && t.thumb == taskDone && t.cancel != nil {
		t.cancel()
		t.cancel = nil
		t.ctx = nil
	}
}

// update applies fn to one row under the write lock and returns the result.
func (p *Pipeline) update(id int64, fn func(*RowState)) (RowState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.index[id]
	if !ok {
		return RowState{}, false
	}
	fn(&p.rows[i])
	return p.rows[i], true
}

// admit waits on the configured gate. False means ctx ended while waiting;
// abandon has already reset the task.
func (p *Pipeline) admit(ctx context.Context) bool {
	if p.cfg.Gate == nil {
		return true
	}
	return p.cfg.Gate.Wait(ctx) == nil
}

func (p *Pipeline) runFacts(ctx context.Context, key taskKey, path string) {
	if !p.admit(ctx) {
		return
	}
	facts := p.facts.Enrich(ctx, path)
	if ctx.Err() != nil {
		return
	}
	if err := p.send(factsDone{key: key, facts: facts}); err != nil {
		logging.Debug("Dropping facts for %s: %v", path, err)
	}
}

func (p *Pipeline) runThumbnail(ctx context.Context, key taskKey, path string) {
	if !p.admit(ctx) {
		return
	}
	_, err := p.thumbs.Get(ctx, path)
	abandoned := ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !abandoned {
		logging.Debug("No thumbnail for %s: %v", path, err)
	}
	if err := p.send(thumbDone{key: key, has: err == nil, abandoned: abandoned}); err != nil {
		logging.Debug("Dropping thumbnail result for %s: %v", path, err)
	}
}
