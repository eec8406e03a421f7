package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/store"
	"github.com/basket/tasktrack/internal/task"
)

// ErrClosed is returned by setters after Close.
var ErrClosed = errors.New("view: compositor closed")

// Source supplies the live queries the compositor reads. *store.Store
// implements it.
type Source interface {
	FilterTasks(f task.Filter) *store.Query[[]task.Task]
	SearchTasks(text string) *store.Query[[]task.Task]
}

type Config struct {
	Source Source
	Filter task.Filter
	// Search is the initial search text; the filter's list is never shown
	// while it is set.
	Search  string
	Logger  *slog.Logger
	Metrics *otel.Metrics
}

var filters = []task.Filter{task.FilterAll, task.FilterActive, task.FilterCompleted}

// Compositor owns the visible list. A single reducer goroutine consumes one
// ordered stream of inputs (filter changes, search changes and results from
// the live queries), so the output is a deterministic function of the order
// in which inputs arrived.
//
// Precedence on every input: a non-empty search shows the search result
// regardless of the filter; otherwise the filter's query is shown. Results
// from a query that is not currently deciding the output never emit.
type Compositor struct {
	src     Source
	logger  *slog.Logger
	metrics *otel.Metrics

	visible *live.Value[[]task.Task]
	filter  *live.Value[task.Filter]
	search  *live.Value[string]

	in     chan message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	sources map[task.Filter]*store.Query[[]task.Task]
}

type message interface{ isMessage() }

type setFilter struct{ filter task.Filter }

type setSearch struct{ text string }

type sourceResult struct {
	filter task.Filter
	tasks  []task.Task
}

type searchResult struct {
	generation uint64
	tasks      []task.Task
}

func (setFilter) isMessage()    {}
func (setSearch) isMessage()    {}
func (sourceResult) isMessage() {}
func (searchResult) isMessage() {}

// New starts the compositor. The three filter queries run for its whole life;
// a search query exists only while search text is set.
func New(cfg Config) (*Compositor, error) {
	if cfg.Source == nil {
		return nil, errors.New("view: source is required")
	}
	if !cfg.Filter.Valid() {
		return nil, fmt.Errorf("view: invalid filter %d", cfg.Filter)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Compositor{
		src:     cfg.Source,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		visible: live.New(live.SliceEqual[task.Task]),
		filter:  live.Of(cfg.Filter, live.Equal[task.Filter]),
		search:  live.Of("", live.Equal[string]),
		in:      make(chan message, 16),
		ctx:     ctx,
		cancel:  cancel,
		sources: make(map[task.Filter]*store.Query[[]task.Task], len(filters)),
	}
	for _, f := range filters {
		q := cfg.Source.FilterTasks(f)
		c.sources[f] = q
		c.forward(q, func(tasks []task.Task) message {
			return sourceResult{filter: f, tasks: tasks}
		})
	}
	r := &reducer{c: c, state: FilterState{Filter: cfg.Filter}, cache: make(map[task.Filter][]task.Task)}
	if cfg.Search != "" {
		r.apply(setSearch{text: cfg.Search})
	}
	c.wg.Add(1)
	go r.run()
	return c, nil
}

// forward relays every value of q into the reducer's input stream.
func (c *Compositor) forward(q *store.Query[[]task.Task], wrap func([]task.Task) message) {
	ch, unsubscribe := q.Subscribe()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unsubscribe()
		for tasks := range ch {
			select {
			case c.in <- wrap(tasks):
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

// Visible is the list to display.
func (c *Compositor) Visible() *live.Value[[]task.Task] {
	return c.visible
}

func (c *Compositor) Filter() *live.Value[task.Filter] {
	return c.filter
}

func (c *Compositor) Search() *live.Value[string] {
	return c.search
}

// State returns the inputs as last applied by the reducer.
func (c *Compositor) State() FilterState {
	f, _ := c.filter.Get()
	s, _ := c.search.Get()
	return FilterState{Filter: f, Search: s}
}

func (c *Compositor) send(m message) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.in <- m:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Compositor) SetFilter(f task.Filter) error {
	if !f.Valid() {
		return &task.ValidationError{Field: "filter", Message: fmt.Sprintf("unknown filter %d", f)}
	}
	return c.send(setFilter{filter: f})
}

// SetSearch changes the search text. The empty string turns search off and
// restores the filter's list.
func (c *Compositor) SetSearch(text string) error {
	return c.send(setSearch{text: text})
}

// Close stops the reducer and every query the compositor opened, then closes
// the output values.
func (c *Compositor) Close() {
	c.once.Do(func() {
		c.cancel()
		for _, q := range c.sources {
			q.Close()
		}
		c.wg.Wait()
		c.visible.Close()
		c.filter.Close()
		c.search.Close()
	})
}

type reducer struct {
	c     *Compositor
	state FilterState

	// generation tags the current search request. Results carrying any other
	// generation belong to a superseded request and are discarded.
	generation uint64
	searchQ    *store.Query[[]task.Task]

	// cache holds the latest result of each filter query, so switching the
	// filter or clearing search can emit without waiting for a re-run.
	cache map[task.Filter][]task.Task
}

func (r *reducer) run() {
	defer r.c.wg.Done()
	defer func() {
		if r.searchQ != nil {
			r.searchQ.Close()
		}
	}()
	for {
		select {
		case <-r.c.ctx.Done():
			return
		case m := <-r.c.in:
			r.apply(m)
		}
	}
}

func (r *reducer) apply(m message) {
	switch m := m.(type) {
	case setFilter:
		r.state.Filter = m.filter
		r.c.filter.Set(m.filter)
		if !r.state.Searching() {
			r.emitFromCache()
		}

	case setSearch:
		if m.text == r.state.Search {
			return
		}
		r.state.Search = m.text
		r.c.search.Set(m.text)
		r.generation++
		r.closeSearch()
		if m.text == "" {
			r.emitFromCache()
			return
		}
		gen := r.generation
		r.searchQ = r.c.src.SearchTasks(m.text)
		r.c.forward(r.searchQ, func(tasks []task.Task) message {
			return searchResult{generation: gen, tasks: tasks}
		})

	case sourceResult:
		r.cache[m.filter] = m.tasks
		if r.state.Searching() || m.filter != r.state.Filter {
			return
		}
		r.emit(m.tasks)

	case searchResult:
		if m.generation != r.generation || !r.state.Searching() {
			r.c.metrics.RecordStaleSearch(r.c.ctx)
			r.c.logger.Debug("discarded stale search result", "generation", m.generation, "current", r.generation)
			return
		}
		r.emit(m.tasks)
	}
}

func (r *reducer) emitFromCache() {
	if tasks, ok := r.cache[r.state.Filter]; ok {
		r.emit(tasks)
	}
}

func (r *reducer) emit(tasks []task.Task) {
	if r.c.visible.Set(tasks) {
		r.c.metrics.RecordEmission(r.c.ctx, r.state.Mode())
	}
}

// closeSearch stops the current search query without waiting on the reducer;
// its forwarder may still deliver one last result, which the generation check
// drops.
func (r *reducer) closeSearch() {
	if r.searchQ == nil {
		return
	}
	q := r.searchQ
	r.searchQ = nil
	go q.Close()
}
