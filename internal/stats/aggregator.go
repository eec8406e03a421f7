// Package stats keeps the active, completed and overdue counters of the whole
// collection. The counters ignore the view's filter and search.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/store"
	"github.com/basket/tasktrack/internal/worker"
)

// Source is the part of *store.Store the aggregator reads.
type Source interface {
	ActiveCount() *store.Query[int]
	CompletedCount() *store.Query[int]
	OverdueCount(now func() time.Time) *store.Query[int]
	OverdueAt(ctx context.Context, now time.Time) *worker.Future[int]
}

type Config struct {
	Source Source
	// Now is the instant overdue is evaluated at on every recompute.
	Now func() time.Time
}

// Counts is one reading of the three counters.
type Counts struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

func (c Counts) String() string {
	return fmt.Sprintf("%d active, %d completed, %d overdue", c.Active, c.Completed, c.Overdue)
}

type Aggregator struct {
	src       Source
	active    *store.Query[int]
	completed *store.Query[int]
	overdue   *store.Query[int]
}

func New(cfg Config) (*Aggregator, error) {
	if cfg.Source == nil {
		return nil, errors.New("stats: source is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		src:       cfg.Source,
		active:    cfg.Source.ActiveCount(),
		completed: cfg.Source.CompletedCount(),
		overdue:   cfg.Source.OverdueCount(now),
	}, nil
}

func (a *Aggregator) Active() *live.Value[int] {
	return a.active.Value
}

func (a *Aggregator) Completed() *live.Value[int] {
	return a.completed.Value
}

// Overdue is recomputed on every change to the collection. Between changes it
// goes stale as time passes; call Refresh to re-evaluate it.
func (a *Aggregator) Overdue() *live.Value[int] {
	return a.overdue.Value
}

// Refresh re-evaluates Overdue at the clock's current time.
func (a *Aggregator) Refresh() {
	a.overdue.Refresh()
}

// OverdueAt counts overdue tasks at now without touching Overdue.
func (a *Aggregator) OverdueAt(ctx context.Context, now time.Time) *worker.Future[int] {
	return a.src.OverdueAt(ctx, now)
}

// Current returns the latest value of each counter. Counters that have not
// produced a value yet read as zero.
func (a *Aggregator) Current() Counts {
	active, _ := a.active.Get()
	completed, _ := a.completed.Get()
	overdue, _ := a.overdue.Get()
	return Counts{Active: active, Completed: completed, Overdue: overdue}
}

// Err joins the errors of the counters' most recent runs.
func (a *Aggregator) Err() error {
	return errors.Join(a.active.Err(), a.completed.Err(), a.overdue.Err())
}

func (a *Aggregator) Close() {
	a.active.Close()
	a.completed.Close()
	a.overdue.Close()
}
