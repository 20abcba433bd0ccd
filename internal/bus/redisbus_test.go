package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pmundhra/plum-ems/internal/logging"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisPublisherPublish(t *testing.T) {
	client := newTestClient(t)
	pub := NewRedisPublisher(client)

	err := pub.Publish(context.Background(), "topic.test", map[string]string{HeaderTraceID: "trace-1"}, map[string]string{"foo": "bar"})
	require.NoError(t, err)

	res, err := client.XRange(context.Background(), streamKey("topic.test"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "trace-1", res[0].Values[HeaderTraceID])

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(res[0].Values[streamValueField].(string)), &decoded))
	require.Equal(t, "bar", decoded["foo"])
}

type recordingHandler struct {
	mu       sync.Mutex
	received []Message
}

func (h *recordingHandler) Name() string { return "recording" }
func (h *recordingHandler) Handle(ctx context.Context, msg Message, interim InterimOutput) (InterimOutput, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
	return interim, nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestConsumerRunSingleDeliversAndAcks(t *testing.T) {
	client := newTestClient(t)
	pub := NewRedisPublisher(client)

	registry := NewRegistry()
	handler := &recordingHandler{}
	registry.Register("topic.run", handler)

	consumer := NewConsumer(client, registry, "group1", "consumer1", logging.NewDefault())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- consumer.RunSingle(ctx, "topic.run") }()

	require.NoError(t, pub.Publish(context.Background(), "topic.run", map[string]string{HeaderTraceID: "t1"}, map[string]string{"k": "v"}))

	require.Eventually(t, func() bool { return handler.count() == 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not shut down after context cancellation")
	}
}

func TestPublishDLQAnnotatesSourceHeader(t *testing.T) {
	client := newTestClient(t)
	pub := NewRedisPublisher(client)

	err := PublishDLQ(context.Background(), pub, "topic.dlq", "topic.origin", map[string]string{HeaderTraceID: "t1"}, map[string]string{"k": "v"})
	require.NoError(t, err)

	res, err := client.XRange(context.Background(), streamKey("topic.dlq"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "dlq:topic.origin", res[0].Values[HeaderSource])
	require.Equal(t, "t1", res[0].Values[HeaderTraceID])
}
