package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/cleanwash/cleanwash/internal/kafka"
	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, m CompletionMail) error
}

// Consumer turns OrderCompleted events into completion emails. Strictly
// best effort: every message is committed exactly once, delivery failures
// are logged and swallowed.
type Consumer struct {
	Mailer Sender
	Redis  *redis.Client
	Log    *zap.Logger
}

// HandleOrderEvent is the kafka consumer handler.
func (c *Consumer) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.Log.Warn("drop malformed event", zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCompleted {
		return nil
	}

	// dedup via Redis so a redelivered offset never mails twice
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	exists, err := redisx.Exists(ctx, c.Redis, dkey)
	if err != nil {
		c.Log.Warn("dedup check failed, treating event as unseen",
			zap.String("event_id", env.EventID), zap.Error(err))
	}
	if exists {
		return nil
	}
	_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCompletedPayload](env.Payload)
	if err != nil {
		c.Log.Warn("drop malformed completion payload", zap.Error(err))
		return nil
	}

	if err := c.Mailer.Send(ctx, CompletionMail{Email: p.Email, Name: p.Name, OrderID: p.OrderID}); err != nil {
		c.Log.Error("send completion email",
			zap.String("order_id", p.OrderID), zap.Error(err))
		return nil
	}
	c.Log.Info("completion email sent", zap.String("order_id", p.OrderID))
	return nil
}
