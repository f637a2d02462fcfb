package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesouraria/internal/core"
)

type fakeLister struct {
	mu    sync.Mutex
	ts    []core.Transaction
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeLister) List(context.Context) ([]core.Transaction, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.ts...), f.err
}

func (f *fakeLister) set(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ts = nil
	for _, id := range ids {
		f.ts = append(f.ts, core.Transaction{ID: id, Type: core.Income})
	}
}

type fakeWatcher struct {
	*fakeLister
	changes chan struct{}
	err     error
}

func (w *fakeWatcher) Watch(context.Context) (<-chan struct{}, error) {
	return w.changes, w.err
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestSubscribeDeliversCurrentImmediately(t *testing.T) {
	store := &fakeLister{}
	store.set("a", "b")
	feed := NewFeed(store, nil)
	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)

	ch, unsubscribe := feed.Subscribe(context.Background())
	defer unsubscribe()

	snap := receive(t, ch)
	assert.EqualValues(t, 1, snap.Version)
	assert.Len(t, snap.Transactions, 2)
}

func TestSubscriberReceivesNewSnapshotAfterRefresh(t *testing.T) {
	store := &fakeLister{}
	feed := NewFeed(store, nil)

	ch, unsubscribe := feed.Subscribe(context.Background())
	defer unsubscribe()
	initial := receive(t, ch)
	assert.Zero(t, initial.Version)

	store.set("a")
	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)

	snap := receive(t, ch)
	assert.EqualValues(t, 1, snap.Version)
	assert.Equal(t, "a", snap.Transactions[0].ID)
}

func TestSlowSubscriberKeepsOnlyNewest(t *testing.T) {
	store := &fakeLister{}
	feed := NewFeed(store, nil)
	ch, unsubscribe := feed.Subscribe(context.Background())
	defer unsubscribe()

	for i, id := range []string{"a", "b", "c"} {
		store.set(id)
		snap, err := feed.Refresh(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, i+1, snap.Version)
	}

	snap := receive(t, ch)
	assert.EqualValues(t, 3, snap.Version)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %d", extra.Version)
	default:
	}
}

func TestUnchangedRefreshKeepsVersion(t *testing.T) {
	store := &fakeLister{}
	store.set("a")
	feed := NewFeed(store, nil)

	first, _ := feed.Refresh(context.Background())
	second, _ := feed.Refresh(context.Background())
	assert.Equal(t, first.Version, second.Version)

	store.set()
	third, _ := feed.Refresh(context.Background())
	assert.Equal(t, first.Version+1, third.Version)
	assert.NotNil(t, third.Transactions)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	feed := NewFeed(&fakeLister{}, nil)
	ch, unsubscribe := feed.Subscribe(context.Background())
	receive(t, ch)

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, feed.Subscribers())

	// Publishing after unsubscribe must not panic.
	_, err := feed.Refresh(context.Background())
	assert.NoError(t, err)
}

func TestContextCancelUnsubscribes(t *testing.T) {
	feed := NewFeed(&fakeLister{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := feed.Subscribe(ctx)
	receive(t, ch)

	cancel()
	require.Eventually(t, func() bool { return feed.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	store := &fakeLister{gate: make(chan struct{})}
	store.set("a")
	feed := NewFeed(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed.Refresh(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return store.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Less(t, store.calls.Load(), int32(5))
	assert.EqualValues(t, 1, feed.Current().Version)
}

func TestRefreshErrorKeepsCurrent(t *testing.T) {
	store := &fakeLister{}
	store.set("a")
	feed := NewFeed(store, nil)
	feed.Refresh(context.Background())

	store.err = errors.New("db down")
	snap, err := feed.Refresh(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 1, snap.Version)
}

func TestOnSnapshotHook(t *testing.T) {
	store := &fakeLister{}
	store.set("a")
	feed := NewFeed(store, nil)

	var got []uint64
	feed.OnSnapshot(func(s Snapshot) { got = append(got, s.Version) })
	feed.Refresh(context.Background())
	assert.Equal(t, []uint64{1}, got)
}

func TestRunRefreshesOnWatchAndPoll(t *testing.T) {
	store := &fakeWatcher{fakeLister: &fakeLister{}, changes: make(chan struct{}, 1)}
	store.set("a")
	feed := NewFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, 0) }()

	require.Eventually(t, func() bool { return feed.Current().Version == 1 }, time.Second, 5*time.Millisecond)

	store.set("a", "b")
	store.changes <- struct{}{}
	require.Eventually(t, func() bool { return feed.Current().Version == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunPollsWithoutWatcher(t *testing.T) {
	store := &fakeWatcher{fakeLister: &fakeLister{}, err: errors.New("standalone server")}
	feed := NewFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return feed.Current().Version == 1 }, time.Second, 5*time.Millisecond)
	store.set("x")
	require.Eventually(t, func() bool { return feed.Current().Version == 2 }, time.Second, 5*time.Millisecond)
}
