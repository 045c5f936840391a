package pipeline

import (
	"context"
	"errors"
	"sync"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/enricher"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/mediatypes"
	"pixel-catalog/internal/metrics"
	"pixel-catalog/internal/workers"
)

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("pipeline: closed")
	// ErrUnknownRow is returned by Visible and Hidden for ids not in the list.
	ErrUnknownRow = errors.New("pipeline: unknown row")
)

// Scanner produces the catalog list.
type Scanner interface {
	Scan(ctx context.Context) ([]catalog.Entry, error)
}

// FactsSource computes technical facts for a file. It never fails; failures
// come back as sentinel facts.
type FactsSource interface {
	Enrich(ctx context.Context, path string) enricher.Facts
}

// ThumbnailSource returns an encoded preview for a file.
type ThumbnailSource interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// RowState is the display state of one catalog row.
type RowState struct {
	Entry          catalog.Entry  `json:"entry"`
	Facts          enricher.Facts `json:"facts"`
	FactsReady     bool           `json:"factsReady"`
	ThumbnailReady bool           `json:"thumbnailReady"`
	HasThumbnail   bool           `json:"hasThumbnail"`
}

// UpdateKind says what changed in a RowUpdate.
type UpdateKind string

const (
	UpdateLoaded    UpdateKind = "loaded"
	UpdateFacts     UpdateKind = "facts"
	UpdateThumbnail UpdateKind = "thumbnail"
)

// RowUpdate is published to subscribers after each change. For
// UpdateLoaded, ID is zero and Row is empty; the whole list was replaced.
type RowUpdate struct {
	Kind UpdateKind `json:"kind"`
	ID   int64      `json:"id,omitempty"`
	Row  RowState   `json:"row"`
}

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of concurrent decode tasks (0 = workers.ForIO).
	Workers int
	// SubscriberBuffer is the channel size given to each subscriber.
	SubscriberBuffer int
	// Gate, when set, is waited on before every decode task.
	Gate Gate
}

// Gate holds decode tasks back, for example while memory is under pressure.
// Wait returns ctx.Err() if ctx ends first.
type Gate interface {
	Wait(ctx context.Context) error
}

// Pipeline owns the catalog list and schedules enrichment and thumbnail
// work for rows that become visible.
//
// All changes to the list go through a single writer goroutine. Readers get
// copies.
type Pipeline struct {
	scanner Scanner
	facts   FactsSource
	thumbs  ThumbnailSource
	pool    *workers.Pool
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	done   chan struct{}

	mu         sync.RWMutex
	rows       []RowState
	index      map[int64]int
	generation uint64

	subMu   sync.Mutex
	subs    map[int]chan RowUpdate
	nextSub int

	closeOnce sync.Once
}

// New starts a pipeline. Call Load to populate it and Close to release it.
func New(scanner Scanner, facts FactsSource, thumbs ThumbnailSource, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForIO(16)
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		scanner: scanner,
		facts:   facts,
		thumbs:  thumbs,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan command, 256),
		done:    make(chan struct{}),
		index:   make(map[int64]int),
		subs:    make(map[int]chan RowUpdate),
	}

	p.pool = workers.NewPool(cfg.Workers)
	p.pool.OnQueueChange = func(depth int) {
		metrics.PipelineQueueDepth.Set(float64(depth))
	}
	metrics.PipelineWorkers.Set(float64(cfg.Workers))

	go p.run()

	logging.Info("Pipeline started with %d workers", cfg.Workers)
	return p
}

// Load scans the catalog on a background goroutine and replaces the list
// with the result. The returned channel receives the scan error (nil on
// success) once the new list is installed, then closes. Pending work for the
// old list is abandoned.
func (p *Pipeline) Load(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	go func() {
		defer close(result)

		entries, err := p.scanner.Scan(ctx)
		if err != nil {
			logging.Error("Catalog scan failed: %v", err)
			result <- err
			return
		}

		installed := make(chan struct{})
		if err := p.send(loadCmd{entries: entries, installed: installed}); err != nil {
			result <- err
			return
		}
		select {
		case <-installed:
			result <- nil
		case <-p.done:
			result <- ErrClosed
		}
	}()

	return result
}

// Visible schedules the row's pending enrichment and thumbnail tasks. Each
// task is scheduled at most once while the list is loaded, unless Hidden
// abandons it first. The id is checked against the list installed when the
// writer handles the call, so an id dropped by a concurrent Load reports
// ErrUnknownRow.
func (p *Pipeline) Visible(id int64) error {
	reply := make(chan error, 1)
	if err := p.send(visibleCmd{id: id, reply: reply}); err != nil {
		return err
	}
	return p.await(reply)
}

// Hidden abandons the row's unfinished tasks. Decode sessions already open
// are still closed by the components that opened them.
func (p *Pipeline) Hidden(id int64) error {
	reply := make(chan error, 1)
	if err := p.send(hiddenCmd{id: id, reply: reply}); err != nil {
		return err
	}
	return p.await(reply)
}

// Rows returns a copy of the list.
func (p *Pipeline) Rows() []RowState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]RowState, len(p.rows))
	copy(out, p.rows)
	return out
}

// Row returns the state of one row.
func (p *Pipeline) Row(id int64) (RowState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i, ok := p.index[id]
	if !ok {
		return RowState{}, false
	}
	return p.rows[i], true
}

// Entries returns the catalog entries with facts applied where known.
func (p *Pipeline) Entries() []catalog.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]catalog.Entry, len(p.rows))
	for i, r := range p.rows {
		out[i] = r.Entry
	}
	return out
}

// Subscribe returns a channel of row updates and a function that ends the
// subscription. Updates are dropped for a subscriber whose buffer is full;
// it can catch up with Rows.
func (p *Pipeline) Subscribe() (<-chan RowUpdate, func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	ch := make(chan RowUpdate, p.cfg.SubscriberBuffer)
	select {
	case <-p.done:
		close(ch)
		return ch, func() {}
	default:
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			defer p.subMu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Close abandons all work, waits for running tasks and closes subscriber
// channels.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		p.pool.Close()
		logging.Info("Pipeline stopped")
	})
}

func (p *Pipeline) await(reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-p.done:
		return ErrClosed
	}
}

func (p *Pipeline) send(c command) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.cmds <- c:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

func (p *Pipeline) publish(u RowUpdate) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (p *Pipeline) closeSubscribers() {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

// thumbnailGated reports whether a path never gets a decoded thumbnail.
func thumbnailGated(path string) bool {
	return !mediatypes.NeedsFrameExtraction(path)
}
