package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/orders"
)

type stubSender struct {
	sent []CompletionMail
	err  error
}

func (s *stubSender) Send(ctx context.Context, m CompletionMail) error {
	s.sent = append(s.sent, m)
	return s.err
}

func TestHandleOrderEvent_IgnoresOtherEvents(t *testing.T) {
	sender := &stubSender{}
	c := &Consumer{Mailer: sender, Log: zap.NewNop()}

	msg := kafkago.Message{Value: []byte(`{"event_id":"e1","event_type":"OrderStatusChanged","payload":{}}`)}
	err := c.HandleOrderEvent(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleOrderEvent_DropsMalformed(t *testing.T) {
	sender := &stubSender{}
	c := &Consumer{Mailer: sender, Log: zap.NewNop()}

	err := c.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("{broken")})
	require.NoError(t, err, "malformed events must be committed, not retried")
	assert.Empty(t, sender.sent)
}

func completedMessage(t *testing.T, eventID string) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(orders.OrderCompletedPayload{
		OrderID: "ord-1", Email: "ada@campus.edu", Name: "Ada",
	})
	require.NoError(t, err)
	b, err := json.Marshal(orders.Envelope{
		EventID:   eventID,
		EventType: orders.EventOrderCompleted,
		Payload:   payload,
	})
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleOrderEvent_DedupsByEventID(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sender := &stubSender{}
	c := &Consumer{Mailer: sender, Redis: rdb, Log: zap.NewNop()}

	msg := completedMessage(t, "ev-1")
	require.NoError(t, c.HandleOrderEvent(context.Background(), msg))
	require.NoError(t, c.HandleOrderEvent(context.Background(), msg))

	require.Len(t, sender.sent, 1, "a redelivered event must mail once")
	assert.Equal(t, "ada@campus.edu", sender.sent[0].Email)
	assert.Equal(t, "ord-1", sender.sent[0].OrderID)
}

func TestHandleOrderEvent_RedisDownStillSends(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	sender := &stubSender{}
	c := &Consumer{Mailer: sender, Redis: rdb, Log: zap.NewNop()}

	err := c.HandleOrderEvent(context.Background(), completedMessage(t, "ev-2"))
	require.NoError(t, err, "a dedup outage must not stall the consumer")
	require.Len(t, sender.sent, 1)
}
