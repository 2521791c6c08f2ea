package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() entities.RealtimeEvent {
	return entities.RealtimeEvent{
		Event: entities.EventTransferCompleted,
		Data: entities.TransferEventData{
			TransactionID: uuid.New(),
			Amount:        25,
			Type:          entities.EntryTypeTip,
		},
		Timestamp: time.Now(),
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	srv := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	ctx := context.Background()

	sub := cli.Subscribe(ctx, "user:abc")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisPublisher(cli).Publish(ctx, "user:abc", sampleEvent()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
	assert.Equal(t, entities.EventTransferCompleted, decoded["event"])
}

func TestRedisPublisher_PublishError(t *testing.T) {
	srv := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = cli.Close() })
	srv.Close()

	err := NewRedisPublisher(cli).Publish(context.Background(), "user:abc", sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to user:abc")
}

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByChannel(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.Publish(context.Background(), "stream:s1", sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "stream:s1", string(w.msgs[0].Key))
	assert.Equal(t, "event", w.msgs[0].Headers[0].Key)
	assert.Equal(t, entities.EventTransferCompleted, string(w.msgs[0].Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	err := NewKafkaPublisher(w).Publish(context.Background(), "user:x", sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"k1:9092"}, "ledger-events")
	assert.Equal(t, "ledger-events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "user:x", sampleEvent()))
}
