package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/store"
)

type stubRepo struct {
	mu      sync.Mutex
	pending []orders.OrderView
	active  []orders.OrderView
	err     error
	calls   int
}

func (r *stubRepo) ListViews(ctx context.Context, statuses ...orders.Status) ([]orders.OrderView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(statuses) == 1 && statuses[0] == orders.StatusPending {
		return r.pending, nil
	}
	return r.active, nil
}

func (r *stubRepo) set(pending, active []orders.OrderView, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending, r.active, r.err = pending, active, err
}

type stubSub struct {
	mu      sync.Mutex
	closed  bool
	handler store.Handler
}

func (s *stubSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSub) Subscribe(ctx context.Context, collection string, events []store.Event, h store.Handler) store.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	return s
}

func (s *stubSub) fire(c store.Change) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(c)
}

func view(id string) orders.OrderView {
	return orders.OrderView{Order: orders.Order{ID: id, StudentID: "stu-1"}}
}

func TestSynchronizer_EagerFetchOnStart(t *testing.T) {
	repo := &stubRepo{pending: []orders.OrderView{view("p1")}, active: []orders.OrderView{view("a1")}}
	sub := &stubSub{}
	s := New(repo, sub, zap.NewNop(), 0)

	s.Start(context.Background())
	defer s.Stop()

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "p1", snap.Pending[0].ID)
	require.Len(t, snap.Active, 1)
	assert.Equal(t, "a1", snap.Active[0].ID)
	assert.False(t, snap.RefreshedAt.IsZero())
}

func TestSynchronizer_ChangeTriggersRefresh(t *testing.T) {
	repo := &stubRepo{}
	sub := &stubSub{}
	s := New(repo, sub, zap.NewNop(), 0)

	s.Start(context.Background())
	defer s.Stop()

	ch, cancel := s.Listen()
	defer cancel()

	repo.set([]orders.OrderView{view("p2")}, nil, nil)
	sub.fire(store.Change{Collection: store.CollectionOrders, Event: store.EventInsert, ID: "p2"})

	select {
	case snap := <-ch:
		require.Len(t, snap.Pending, 1)
		assert.Equal(t, "p2", snap.Pending[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after change event")
	}
}

func TestSynchronizer_FetchFailureKeepsLastSnapshot(t *testing.T) {
	repo := &stubRepo{pending: []orders.OrderView{view("p1")}}
	sub := &stubSub{}
	s := New(repo, sub, zap.NewNop(), 0)

	s.Start(context.Background())
	defer s.Stop()

	before := s.Snapshot()
	require.Len(t, before.Pending, 1)

	repo.set(nil, nil, errors.New("db down"))
	sub.fire(store.Change{Collection: store.CollectionOrders, Event: store.EventUpdate, ID: "p1"})

	after := s.Snapshot()
	require.Len(t, after.Pending, 1, "stale data beats no data")
	assert.Equal(t, before.RefreshedAt, after.RefreshedAt)
}

func TestSynchronizer_StopClosesSubscription(t *testing.T) {
	repo := &stubRepo{}
	sub := &stubSub{}
	s := New(repo, sub, zap.NewNop(), 0)

	s.Start(context.Background())
	s.Stop()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.True(t, sub.closed)
}

func TestSynchronizer_StopBeforeStart(t *testing.T) {
	s := New(&stubRepo{}, &stubSub{}, zap.NewNop(), 0)
	s.Stop() // must not block
}

func TestSynchronizer_ListenCancelUnregisters(t *testing.T) {
	repo := &stubRepo{}
	sub := &stubSub{}
	s := New(repo, sub, zap.NewNop(), 0)

	s.Start(context.Background())
	defer s.Stop()

	_, cancel := s.Listen()
	cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.listeners)
}
