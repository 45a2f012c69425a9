package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cleanwash/cleanwash/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const CollectionOrders = "orders"

type Event string

const (
	EventInsert Event = "insert"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
	EventAny    Event = "*"
)

// Change is one row-level mutation on a collection.
type Change struct {
	Collection string    `json:"collection"`
	Event      Event     `json:"event"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Handler func(Change)

// Subscription is a live change-feed registration. Close releases it;
// holders must not share one across dashboard instances.
type Subscription interface {
	Close() error
}

// Feed delivers row-change notifications over Redis pub/sub, one channel
// per collection.
type Feed struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewFeed(rdb *redis.Client, log *zap.Logger) *Feed {
	return &Feed{rdb: rdb, log: log}
}

func (f *Feed) Publish(ctx context.Context, ch Change) error {
	if ch.OccurredAt.IsZero() {
		ch.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, fmt.Sprintf(redisx.KeyFeed, ch.Collection), b).Err()
}

// Subscribe opens a subscription on a collection. Only changes matching the
// event mask reach the handler; an empty mask means everything.
func (f *Feed) Subscribe(ctx context.Context, collection string, events []Event, h Handler) Subscription {
	ps := f.rdb.Subscribe(ctx, fmt.Sprintf(redisx.KeyFeed, collection))
	sub := &feedSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			var ch Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				f.log.Warn("feed: drop malformed change", zap.Error(err))
				continue
			}
			if !matches(events, ch.Event) {
				continue
			}
			h(ch)
		}
	}()
	return sub
}

type feedSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
}

func (s *feedSubscription) Close() error {
	err := s.ps.Close()
	<-s.done
	return err
}

func matches(mask []Event, ev Event) bool {
	if len(mask) == 0 {
		return true
	}
	for _, m := range mask {
		if m == EventAny || m == ev {
			return true
		}
	}
	return false
}
