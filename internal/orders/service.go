package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	kafkax "github.com/cleanwash/cleanwash/internal/kafka"
	"github.com/cleanwash/cleanwash/internal/store"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Repository is the slice of Repo the state machine needs.
type Repository interface {
	Get(ctx context.Context, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, p StatusPatch) error
	StudentContact(ctx context.Context, studentID string) (Contact, error)
}

// ChangePublisher pushes row-change notifications onto the live feed.
type ChangePublisher interface {
	Publish(ctx context.Context, ch store.Change) error
}

// EventPublisher hands domain events to the event bus, fire-and-forget.
type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Actor struct {
	ID   string
	Role string
}

// Service is the order status state machine. All status mutations go
// through ApplyTransition; nothing else writes the status column.
type Service struct {
	repo     Repository
	feed     ChangePublisher
	events   EventPublisher
	log      *zap.Logger
	producer string
}

func NewService(repo Repository, feed ChangePublisher, events EventPublisher, log *zap.Logger, producer string) *Service {
	return &Service{repo: repo, feed: feed, events: events, log: log, producer: producer}
}

// ApplyTransition validates and performs one status transition, attaching
// the per-target side effects: accepted pins the acting worker, completed
// stamps the delivery time and may overwrite the notes, cancelled releases
// the student's reserved wash. Illegal and no-op requests are rejected
// before anything reaches storage. Concurrent writers race last-write-wins;
// there is no version token.
func (s *Service) ApplyTransition(ctx context.Context, orderID string, target Status, actor Actor, notes string) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if target == order.Status {
		return nil, fmt.Errorf("%w: order already %s", ErrInvalidTransition, target)
	}
	if !CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	patch := StatusPatch{Status: target}
	switch target {
	case StatusAccepted:
		if actor.ID == "" {
			return nil, ErrNoIdentity
		}
		worker := actor.ID
		patch.WorkerID = &worker
	case StatusCompleted:
		now := time.Now().UTC()
		patch.DeliveryDate = &now
		if n := strings.TrimSpace(notes); n != "" {
			patch.Notes = &n
		}
	case StatusCancelled:
		patch.ReleaseWash = true
	}

	if err := s.repo.UpdateStatus(ctx, orderID, patch); err != nil {
		return nil, err
	}

	updated := *order
	updated.Status = target
	if patch.WorkerID != nil {
		updated.WorkerID = patch.WorkerID
	}
	if patch.DeliveryDate != nil {
		updated.DeliveryDate = patch.DeliveryDate
	}
	if patch.Notes != nil {
		updated.Notes = patch.Notes
	}

	if err := s.feed.Publish(ctx, store.Change{
		Collection: store.CollectionOrders,
		Event:      store.EventUpdate,
		ID:         orderID,
	}); err != nil {
		// the feed is advisory; dashboard polling catches up
		s.log.Warn("publish order change", zap.String("order_id", orderID), zap.Error(err))
	}

	s.publishEvent(EventOrderStatusChanged, orderID, kafkax.MustMarshal(OrderStatusChangedPayload{
		OrderID: orderID,
		From:    order.Status,
		To:      target,
	}))

	if target == StatusCompleted {
		go s.notifyCompleted(updated)
	}
	return &updated, nil
}

// AnnounceCreated publishes the creation event for a freshly placed order.
func (s *Service) AnnounceCreated(orderID, studentID string, totalCents int) {
	s.publishEvent(EventOrderCreated, orderID, kafkax.MustMarshal(OrderCreatedPayload{
		OrderID:    orderID,
		StudentID:  studentID,
		TotalCents: totalCents,
	}))
}

// notifyCompleted resolves the student's contact and publishes the
// completion event for the mail notifier. Best effort: failures are logged,
// never surfaced, and never revert the transition.
func (s *Service) notifyCompleted(o Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := s.repo.StudentContact(ctx, o.StudentID)
	if err != nil || c.Email == "" {
		s.log.Warn("completion email skipped: no resolvable address",
			zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	s.publishEvent(EventOrderCompleted, o.ID, kafkax.MustMarshal(OrderCompletedPayload{
		OrderID: o.ID,
		Email:   c.Email,
		Name:    c.Name,
	}))
}

func (s *Service) publishEvent(eventType, orderID string, payload []byte) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.producer,
		CorrelationID: orderID,
		Payload:       payload,
	}
	s.events.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
