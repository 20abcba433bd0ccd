// Package bus provides the topic-based message bus abstraction: a handler
// registry, single/batch consumer modes, and a Redis Streams-backed
// publisher/consumer pair. Each topic is a single Redis Stream
// ("stream:<topic>"); messages are not sharded or partitioned by
// endorsement_id.
package bus

import (
	"context"
	"encoding/json"
)

// Message is one envelope read off a topic: a JSON value plus the headers
// the spec requires on every message (trace_id, source, employer_id, and
// retry_after_seconds on retry messages).
type Message struct {
	Topic   string
	Headers map[string]string
	Value   json.RawMessage
}

// Header is a well-known header key.
const (
	HeaderTraceID           = "trace_id"
	HeaderSource            = "source"
	HeaderEmployerID        = "employer_id"
	HeaderRetryAfterSeconds = "retry_after_seconds"
)

// InterimOutput is a mutable bag handlers use to pass data between stages
// within a single consumer process; it never crosses a topic boundary.
type InterimOutput struct {
	Data map[string]interface{}
}

// NewInterimOutput returns an empty InterimOutput.
func NewInterimOutput() InterimOutput {
	return InterimOutput{Data: make(map[string]interface{})}
}

// Handler processes one message and returns an updated InterimOutput.
// Implementations that can benefit from bulk consumption should also
// implement BulkHandler.
type Handler interface {
	Name() string
	Handle(ctx context.Context, msg Message, interim InterimOutput) (InterimOutput, error)
}

// BulkHandler is the optional fast path a consumer uses in batch mode when
// a handler can process the whole batch at once instead of one at a time.
type BulkHandler interface {
	Handler
	BulkHandle(ctx context.Context, msgs []Message, interim InterimOutput) (InterimOutput, error)
}

// Registry maps topic names to the handlers registered against them. A
// topic may have more than one handler; a single message is routed through
// all of them in registration order, with per-handler failures isolated
// (logged and the next handler still runs).
type Registry struct {
	handlers map[string][]Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register adds a handler for a topic.
func (r *Registry) Register(topic string, h Handler) {
	r.handlers[topic] = append(r.handlers[topic], h)
}

// For returns the handlers registered for a topic, in registration order.
func (r *Registry) For(topic string) []Handler {
	return r.handlers[topic]
}

// Publisher publishes a message onto a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, headers map[string]string, value interface{}) error
}
