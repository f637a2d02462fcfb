// Package live keeps the latest ledger snapshot and pushes it to subscribers.
//
// Every subscriber gets the current snapshot as soon as it subscribes and
// every newer one after that. Each subscriber has a one-slot buffer holding
// only the newest snapshot, so a slow reader skips versions instead of
// blocking writers.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
)

// Snapshot is an immutable view of the full ledger, newest date first.
// Consumers must not modify Transactions.
type Snapshot struct {
	Version      uint64
	Transactions []core.Transaction
	TakenAt      time.Time
}

type subscriber struct {
	ch   chan Snapshot
	once sync.Once
}

// Feed broadcasts ledger snapshots.
type Feed struct {
	store  ledger.Lister
	logger *log.Logger

	mu      sync.RWMutex
	current Snapshot
	subs    map[*subscriber]struct{}
	hooks   []func(Snapshot)

	group singleflight.Group
	now   func() time.Time
}

func NewFeed(store ledger.Lister, logger *log.Logger) *Feed {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Feed{
		store:  store,
		logger: logger.WithComponent(log.ComponentFeed),
		subs:   make(map[*subscriber]struct{}),
		now:    time.Now,
	}
}

// Current returns the latest snapshot. Version 0 means nothing was loaded yet.
func (f *Feed) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// OnSnapshot registers fn to run after each new snapshot is published.
// Hooks run on the refreshing goroutine, in registration order.
func (f *Feed) OnSnapshot(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
}

// Subscribe returns a channel that receives the current snapshot right away
// and every later one. The returned function unsubscribes and closes the
// channel; calling it again is a no-op. Cancelling ctx also unsubscribes.
func (f *Feed) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	s := &subscriber{ch: make(chan Snapshot, 1)}

	f.mu.Lock()
	f.subs[s] = struct{}{}
	s.ch <- f.current
	f.mu.Unlock()

	unsubscribe := func() {
		s.once.Do(func() {
			f.mu.Lock()
			delete(f.subs, s)
			close(s.ch)
			f.mu.Unlock()
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsubscribe()
		}()
	}
	return s.ch, unsubscribe
}

// Subscribers reports how many subscriptions are open.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Refresh lists the store and publishes the result when it differs from the
// current snapshot. Concurrent calls share one store read.
func (f *Feed) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := f.group.Do("refresh", func() (any, error) {
		ts, err := f.store.List(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list transactions: %w", err)
		}
		return f.publish(ts), nil
	})
	if err != nil {
		f.logger.WarnContext(ctx, "Snapshot refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, err.Error())
		return f.Current(), err
	}
	return v.(Snapshot), nil
}

func (f *Feed) publish(ts []core.Transaction) Snapshot {
	if ts == nil {
		ts = []core.Transaction{}
	}

	f.mu.Lock()
	if f.current.Version > 0 && sameLedger(f.current.Transactions, ts) {
		snap := f.current
		f.mu.Unlock()
		return snap
	}
	snap := Snapshot{
		Version:      f.current.Version + 1,
		Transactions: ts,
		TakenAt:      f.now(),
	}
	f.current = snap
	for s := range f.subs {
		deliver(s.ch, snap)
	}
	hooks := append([]func(Snapshot) nil, f.hooks...)
	f.mu.Unlock()

	for _, hook := range hooks {
		hook(snap)
	}
	f.logger.Debug("Snapshot published",
		log.FieldVersion, snap.Version, log.FieldCount, len(ts), log.FieldSubscribers, f.Subscribers())
	return snap
}

// sameLedger compares two listings by id and order. Stored transactions are
// never modified, so equal ids mean equal content.
func sameLedger(a, b []core.Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// deliver replaces whatever is waiting in the one-slot buffer with snap.
// Callers hold f.mu, so nobody else sends on ch concurrently.
func deliver(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

// Run keeps the feed current until ctx ends. It refreshes once at start,
// on every change announced by a Watcher store, and every poll interval.
// A non-positive interval disables polling.
func (f *Feed) Run(ctx context.Context, poll time.Duration) error {
	if _, err := f.Refresh(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	var changes <-chan struct{}
	if w, ok := f.store.(ledger.Watcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			f.logger.WarnContext(ctx, "Change notifications unavailable, relying on polling", log.FieldError, err.Error())
		} else {
			changes = ch
		}
	}

	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				changes = nil
				f.logger.Warn("Change notifications stopped, relying on polling")
				continue
			}
			f.Refresh(ctx)
		case <-tick:
			f.Refresh(ctx)
		}
	}
}
