package live

import (
	"context"
	"sync"
	"time"

	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/store"
	"go.uber.org/zap"
)

type Repository interface {
	ListViews(ctx context.Context, statuses ...orders.Status) ([]orders.OrderView, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, collection string, events []store.Event, h store.Handler) store.Subscription
}

// Snapshot is the worker dashboard's view of the world: the unclaimed queue
// and the in-progress queue.
type Snapshot struct {
	Pending     []orders.OrderView `json:"pending"`
	Active      []orders.OrderView `json:"active"`
	RefreshedAt time.Time          `json:"refreshed_at"`
}

// Synchronizer keeps the dashboard snapshot current: one eager fetch on
// Start, a change-feed subscription that triggers a full re-fetch on any
// event, and an interval poll as defensive redundancy. A failed fetch keeps
// the previous snapshot; no incremental patching.
type Synchronizer struct {
	repo     Repository
	feed     Subscriber
	log      *zap.Logger
	interval time.Duration

	mu        sync.RWMutex
	snap      Snapshot
	listeners map[int]chan Snapshot
	nextID    int

	sub    store.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func New(repo Repository, feed Subscriber, log *zap.Logger, interval time.Duration) *Synchronizer {
	return &Synchronizer{
		repo:      repo,
		feed:      feed,
		log:       log,
		interval:  interval,
		listeners: map[int]chan Snapshot{},
		done:      make(chan struct{}),
	}
}

func (s *Synchronizer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.refresh(ctx)
	s.sub = s.feed.Subscribe(ctx, store.CollectionOrders, []store.Event{store.EventAny}, func(store.Change) {
		s.refresh(ctx)
	})
	go s.pollLoop(ctx)
}

// Stop releases the subscription and waits for the poll loop to exit.
func (s *Synchronizer) Stop() {
	if s.cancel == nil {
		return // never started
	}
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Close()
	}
	<-s.done
}

func (s *Synchronizer) pollLoop(ctx context.Context) {
	defer close(s.done)
	if s.interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

func (s *Synchronizer) refresh(ctx context.Context) {
	now := time.Now().UTC()
	pending, perr := s.repo.ListViews(ctx, orders.StatusPending)
	if perr != nil {
		s.log.Warn("refresh pending queue", zap.Error(perr))
	}
	active, aerr := s.repo.ListViews(ctx, orders.StatusAccepted, orders.StatusProcessing)
	if aerr != nil {
		s.log.Warn("refresh active queue", zap.Error(aerr))
	}
	if perr != nil && aerr != nil {
		return // keep the last good snapshot
	}

	s.mu.Lock()
	if perr == nil {
		s.snap.Pending = pending
	}
	if aerr == nil {
		s.snap.Active = active
	}
	s.snap.RefreshedAt = now
	snap := s.snap
	ls := make([]chan Snapshot, 0, len(s.listeners))
	for _, ch := range s.listeners {
		ls = append(ls, ch)
	}
	s.mu.Unlock()

	for _, ch := range ls {
		select {
		case ch <- snap:
		default: // drop for a lagging listener; the next refresh catches up
		}
	}
}

// Snapshot returns the last good snapshot.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Listen registers a listener for refreshed snapshots. The returned func
// unregisters it.
func (s *Synchronizer) Listen() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
