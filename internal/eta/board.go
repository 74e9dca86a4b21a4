// Package eta polls arrival estimates for the stops a user has expanded.
package eta

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pannnnl/hkbus-eta/internal/metrics"
	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultTickInterval = 5 * time.Second
)

var (
	ErrClosed      = errors.New("eta board is closed")
	ErrNotExpanded = errors.New("stop is not expanded")
)

// Recorder persists poll results
type Recorder interface {
	RecordETAs(ctx context.Context, key Key, polledAt time.Time, entries []models.EtaEntry) error
}

type Options struct {
	PollInterval time.Duration
	TickInterval time.Duration
	Now          func() time.Time
	Recorder     Recorder
	Latency      *metrics.PollLatency
}

// Board tracks expanded stops. Each expanded stop has its own recurring
// poll; a board-wide tick advances the "now" used to hide departed buses.
// Cached arrivals outlive a collapse and are shown again on re-expand
// while a fresh poll runs.
type Board struct {
	registry *source.Registry
	opts     Options
	group    singleflight.Group

	mu       sync.Mutex
	now      time.Time
	cache    map[Key]cacheEntry
	expanded map[Key]*stopState
	closed   bool

	updates chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Board and starts its tick loop. Call Close to stop it.
func New(registry *source.Registry, opts Options) *Board {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Latency == nil {
		opts.Latency = metrics.NewPollLatency()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		registry: registry,
		opts:     opts,
		now:      opts.Now(),
		cache:    make(map[Key]cacheEntry),
		expanded: make(map[Key]*stopState),
		updates:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	b.wg.Add(1)
	go b.tickLoop()
	return b
}

// Updates signals after every poll result, tick and expand/collapse.
// Signals are coalesced; read Views for the current state.
func (b *Board) Updates() <-chan struct{} {
	return b.updates
}

func (b *Board) notify() {
	select {
	case b.updates <- struct{}{}:
	default:
	}
}

func (b *Board) tickLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Board) tick() {
	b.mu.Lock()
	b.now = b.opts.Now()
	b.mu.Unlock()
	b.notify()
}

// Expand starts polling stopID on route. Expanding a stop that is already
// expanded returns its current view without issuing another fetch.
func (b *Board) Expand(route models.Route, stopID string) (View, error) {
	key := KeyFor(route, stopID)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return View{}, ErrClosed
	}
	if st, ok := b.expanded[key]; ok {
		v := b.viewLocked(key, st)
		b.mu.Unlock()
		return v, nil
	}

	ctx, cancel := context.WithCancel(b.ctx)
	st := &stopState{route: route, status: StatusLoading, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	if cached, ok := b.cache[key]; ok {
		st.status = b.classify(cached.entries)
		st.updatedAt = cached.fetchedAt
	}
	b.expanded[key] = st
	v := b.viewLocked(key, st)

	b.wg.Add(1)
	go b.poll(key, st)
	b.mu.Unlock()

	b.notify()
	return v, nil
}

// Collapse stops polling key and waits for its poll loop to exit, so no
// fetch for key starts after Collapse returns. The cache is kept.
func (b *Board) Collapse(key Key) bool {
	b.mu.Lock()
	st, ok := b.expanded[key]
	if ok {
		delete(b.expanded, key)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	st.cancel()
	<-st.done
	b.notify()
	return true
}

// Toggle collapses an expanded stop or expands a collapsed one
func (b *Board) Toggle(route models.Route, stopID string) (View, error) {
	key := KeyFor(route, stopID)
	if b.Collapse(key) {
		return View{Key: key, Status: StatusCollapsed, Now: b.currentNow()}, nil
	}
	return b.Expand(route, stopID)
}

// Refresh polls an expanded stop immediately and returns its view. If a
// poll for key is already in flight, Refresh waits for that one instead.
func (b *Board) Refresh(key Key) (View, error) {
	b.mu.Lock()
	st, ok := b.expanded[key]
	b.mu.Unlock()
	if !ok {
		return View{}, ErrNotExpanded
	}

	b.refresh(key, st)

	v, _ := b.View(key)
	return v, nil
}

func (b *Board) poll(key Key, st *stopState) {
	defer b.wg.Done()
	defer close(st.done)

	b.refresh(key, st)

	timer := time.NewTimer(b.opts.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-st.ctx.Done():
			return
		case <-timer.C:
			b.refresh(key, st)
			timer.Reset(b.opts.PollInterval)
		}
	}
}

func (b *Board) refresh(key Key, st *stopState) {
	started := time.Now()
	adapter, err := b.registry.Get(key.Operator)
	var entries []models.EtaEntry
	if err == nil {
		var v any
		v, err, _ = b.group.Do(key.String(), func() (any, error) {
			return adapter.ETAs(st.ctx, key.StopID, st.route)
		})
		if err == nil {
			entries = models.FilterDirection(v.([]models.EtaEntry), key.Direction)
			models.SortByArrival(entries)
		}
	}
	if st.ctx.Err() != nil {
		return
	}
	// joined a flight started by a collapsed predecessor; the next poll retries
	if errors.Is(err, context.Canceled) {
		return
	}
	polledAt := b.opts.Now()
	b.opts.Latency.Observe(key.Operator, time.Since(started), polledAt, err)

	b.mu.Lock()
	if b.expanded[key] != st {
		b.mu.Unlock()
		return
	}
	st.updatedAt = polledAt
	if err != nil {
		log.Printf("ETA: %s poll failed: %v", key, err)
		st.status = StatusFailed
		st.err = err
	} else {
		b.cache[key] = cacheEntry{entries: entries, fetchedAt: polledAt}
		st.status = b.classify(entries)
		st.err = nil
	}
	b.mu.Unlock()

	if err == nil && b.opts.Recorder != nil {
		if rerr := b.opts.Recorder.RecordETAs(st.ctx, key, polledAt, entries); rerr != nil && st.ctx.Err() == nil {
			log.Printf("ETA: failed to record %s: %v", key, rerr)
		}
	}
	b.notify()
}

// classify must be called with b.mu held
func (b *Board) classify(entries []models.EtaEntry) Status {
	for _, e := range entries {
		if !e.Arrival.Before(b.now) {
			return StatusReady
		}
	}
	return StatusNoArrivals
}

// View returns the current view of key. ok is false if key is collapsed.
func (b *Board) View(key Key) (View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.expanded[key]
	if !ok {
		return View{Key: key, Status: StatusCollapsed, Now: b.now}, false
	}
	return b.viewLocked(key, st), true
}

// Views returns every expanded stop ordered by key
func (b *Board) Views() []View {
	b.mu.Lock()
	views := make([]View, 0, len(b.expanded))
	for key, st := range b.expanded {
		views = append(views, b.viewLocked(key, st))
	}
	b.mu.Unlock()

	sort.Slice(views, func(i, j int) bool {
		return views[i].Key.String() < views[j].Key.String()
	})
	return views
}

func (b *Board) viewLocked(key Key, st *stopState) View {
	v := View{Key: key, Status: st.status, UpdatedAt: st.updatedAt, Now: b.now, Arrivals: []Arrival{}}

	switch st.status {
	case StatusFailed:
		v.Message = messageFailed
		return v
	case StatusLoading:
		return v
	}

	for _, e := range models.Upcoming(b.cache[key].entries, b.now) {
		v.Arrivals = append(v.Arrivals, Arrival{EtaEntry: e, Minutes: e.MinutesUntil(b.now)})
	}
	if len(v.Arrivals) == 0 {
		v.Status = StatusNoArrivals
		v.Message = messageNoArrivals
	} else {
		v.Status = StatusReady
	}
	return v
}

func (b *Board) currentNow() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now
}

// Latency returns per-operator poll statistics
func (b *Board) Latency() []metrics.LatencySummary {
	return b.opts.Latency.Summary()
}

// Expanded returns the number of expanded stops
func (b *Board) Expanded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.expanded)
}

// Close collapses every stop and stops the tick loop
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	states := make([]*stopState, 0, len(b.expanded))
	for key, st := range b.expanded {
		states = append(states, st)
		delete(b.expanded, key)
	}
	b.mu.Unlock()

	for _, st := range states {
		st.cancel()
	}
	b.cancel()
	b.wg.Wait()
}
