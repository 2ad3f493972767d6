// Package search implements the delay-then-fetch primitive behind the
// customer, meter and bill-id lookups. Keystrokes arrive as individual
// requests; only the last one inside the debounce window reaches the
// billing service, and a monotonic generation counter discards results of
// superseded fetches so a late response can never overwrite newer state.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// ErrSuperseded is returned to a caller whose query was replaced by a newer
// one before its fetch fired or completed.
var ErrSuperseded = errors.New("search: query superseded")

// Fetch loads results for a query from the billing service.
type Fetch[T any] func(ctx context.Context, query string) (T, error)

// Config parameterizes a Debouncer.
type Config struct {
	// Delay is the quiet period required before a fetch is issued.
	Delay time.Duration
	// MinQuery is the minimum query length (runes); shorter queries clear
	// results without issuing a request. Zero means no minimum.
	MinQuery int
}

type outcome[T any] struct {
	res T
	err error
}

// Debouncer coalesces a burst of query changes into a single fetch carrying
// the last entered value. An empty query clears results immediately with no
// request.
type Debouncer[T any] struct {
	fetch    Fetch[T]
	delay    time.Duration
	minQuery int

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	waiter chan outcome[T]

	inFlight atomic.Int32
}

// NewDebouncer constructs a Debouncer around fetch.
func NewDebouncer[T any](cfg Config, fetch Fetch[T]) *Debouncer[T] {
	delay := cfg.Delay
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &Debouncer[T]{
		fetch:    fetch,
		delay:    delay,
		minQuery: cfg.MinQuery,
	}
}

// Do schedules a fetch for query after the debounce delay and blocks until
// it resolves, the query is superseded, or ctx ends. Superseding a pending
// query releases its caller with ErrSuperseded; the zero result with a nil
// error means the query was empty or too short and results should clear.
func (d *Debouncer[T]) Do(ctx context.Context, query string) (T, error) {
	var zero T
	trimmed := strings.TrimSpace(query)

	d.mu.Lock()
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.waiter != nil {
		d.waiter <- outcome[T]{err: ErrSuperseded}
		d.waiter = nil
	}
	if trimmed == "" || (d.minQuery > 0 && utf8.RuneCountInString(trimmed) < d.minQuery) {
		d.mu.Unlock()
		return zero, nil
	}

	ch := make(chan outcome[T], 1)
	d.waiter = ch
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		d.inFlight.Add(1)
		res, err := d.fetch(ctx, trimmed)
		d.inFlight.Add(-1)

		d.mu.Lock()
		// A fetch that was superseded mid-flight delivers to nobody.
		if gen == d.gen && d.waiter != nil {
			d.waiter <- outcome[T]{res: res, err: err}
			d.waiter = nil
			d.timer = nil
		}
		d.mu.Unlock()
	})
	d.mu.Unlock()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Loading reports whether a fetch is currently in flight.
func (d *Debouncer[T]) Loading() bool {
	return d.inFlight.Load() > 0
}

const poolIdleTTL = 15 * time.Minute

type poolEntry[T any] struct {
	debouncer *Debouncer[T]
	lastUsed  time.Time
}

// Pool hands out one Debouncer per session so concurrent operators do not
// cancel each other's searches. Idle entries are swept on access.
type Pool[T any] struct {
	cfg   Config
	fetch Fetch[T]

	mu      sync.Mutex
	entries map[string]*poolEntry[T]
}

// NewPool constructs a Pool; every session's debouncer shares cfg and fetch.
func NewPool[T any](cfg Config, fetch Fetch[T]) *Pool[T] {
	return &Pool[T]{
		cfg:     cfg,
		fetch:   fetch,
		entries: make(map[string]*poolEntry[T]),
	}
}

// Get returns the session's debouncer, creating it on first use.
func (p *Pool[T]) Get(sessionID string) *Debouncer[T] {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, entry := range p.entries {
		if id != sessionID && now.Sub(entry.lastUsed) > poolIdleTTL {
			delete(p.entries, id)
		}
	}

	entry, ok := p.entries[sessionID]
	if !ok {
		entry = &poolEntry[T]{debouncer: NewDebouncer(p.cfg, p.fetch)}
		p.entries[sessionID] = entry
	}
	entry.lastUsed = now
	return entry.debouncer
}
