package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
)

const streamValueField = "value"

func streamKey(topic string) string {
	return "stream:" + topic
}

// RedisPublisher publishes messages as Redis Stream entries, one stream per
// topic. Headers are carried as stream field entries alongside the JSON
// value field, matching the external-interfaces mapping of bus topics onto
// Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a *redis.Client as a Publisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish appends value (marshaled as JSON) and headers to the topic's
// stream.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, headers map[string]string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(errs.ErrCodeBus, errs.KindValidation, "marshal message", err)
	}

	fields := make(map[string]interface{}, len(headers)+1)
	for k, v := range headers {
		fields[k] = v
	}
	fields[streamValueField] = string(body)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: fields,
	}).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeBus, errs.KindTransientInfra, "xadd", err)
	}
	metrics.BusMessagesPublishedTotal.WithLabelValues(topic).Inc()
	return nil
}

// Consumer reads from Redis Stream consumer groups and routes messages
// through the handler registry, supporting the single and batch modes from
// the bus-plumbing design.
type Consumer struct {
	client   *redis.Client
	registry *Registry
	group    string
	name     string
	log      *logging.Logger
}

// NewConsumer builds a Consumer bound to a consumer group and member name.
func NewConsumer(client *redis.Client, registry *Registry, group, consumerName string, log *logging.Logger) *Consumer {
	return &Consumer{client: client, registry: registry, group: group, name: consumerName, log: log}
}

func (c *Consumer) ensureGroup(ctx context.Context, topic string) error {
	err := c.client.XGroupCreateMkStream(ctx, streamKey(topic), c.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return errs.Wrap(errs.ErrCodeBus, errs.KindTransientInfra, "create consumer group", err)
	}
	return nil
}

func toMessage(topic string, xm redis.XMessage) (Message, string) {
	headers := make(map[string]string, len(xm.Values))
	var value json.RawMessage
	for k, v := range xm.Values {
		s, _ := v.(string)
		if k == streamValueField {
			value = json.RawMessage(s)
			continue
		}
		headers[k] = s
	}
	return Message{Topic: topic, Headers: headers, Value: value}, xm.ID
}

// RunSingle polls topic one message at a time, routing each through every
// registered handler in order. A handler failure is logged and the next
// handler still runs; the message is acked once every handler has been
// attempted.
func (c *Consumer) RunSingle(ctx context.Context, topic string) error {
	if err := c.ensureGroup(ctx, topic); err != nil {
		return err
	}
	handlers := c.registry.For(topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{streamKey(topic), ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			c.log.WithComponent("bus").WithError(err).Error("xreadgroup failed")
			continue
		}

		for _, stream := range res {
			for _, xm := range stream.Messages {
				msg, id := toMessage(topic, xm)
				interim := NewInterimOutput()
				for _, h := range handlers {
					interim, err = h.Handle(ctx, msg, interim)
					if err != nil {
						c.log.WithComponent("bus").WithError(err).WithField("handler", h.Name()).WithField("topic", topic).Error("handler failed")
					}
				}
				if err := c.client.XAck(ctx, streamKey(topic), c.group, id).Err(); err != nil {
					c.log.WithComponent("bus").WithError(err).Error("xack failed")
				}
			}
		}
	}
}

// RunBatch polls up to n messages, or until t elapses, then delivers the
// batch to handlers that implement BulkHandler, falling back to one-by-one
// dispatch for handlers that don't.
func (c *Consumer) RunBatch(ctx context.Context, topic string, n int, t time.Duration) error {
	if err := c.ensureGroup(ctx, topic); err != nil {
		return err
	}
	handlers := c.registry.For(topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{streamKey(topic), ">"},
			Count:    int64(n),
			Block:    t,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			c.log.WithComponent("bus").WithError(err).Error("xreadgroup batch failed")
			continue
		}

		for _, stream := range res {
			if len(stream.Messages) == 0 {
				continue
			}
			msgs := make([]Message, 0, len(stream.Messages))
			ids := make([]string, 0, len(stream.Messages))
			for _, xm := range stream.Messages {
				msg, id := toMessage(topic, xm)
				msgs = append(msgs, msg)
				ids = append(ids, id)
			}

			interim := NewInterimOutput()
			for _, h := range handlers {
				if bh, ok := h.(BulkHandler); ok {
					interim, err = bh.BulkHandle(ctx, msgs, interim)
					if err != nil {
						c.log.WithComponent("bus").WithError(err).WithField("handler", h.Name()).Error("bulk handler failed")
					}
					continue
				}
				for _, msg := range msgs {
					interim, err = h.Handle(ctx, msg, interim)
					if err != nil {
						c.log.WithComponent("bus").WithError(err).WithField("handler", h.Name()).Error("handler failed")
					}
				}
			}

			if err := c.client.XAck(ctx, streamKey(topic), c.group, ids...).Err(); err != nil {
				c.log.WithComponent("bus").WithError(err).Error("xack batch failed")
			}
		}
	}
}

// PublishDLQ is a convenience wrapper recording the originating topic in
// the DLQ message headers.
func PublishDLQ(ctx context.Context, pub Publisher, dlqTopic, originTopic string, headers map[string]string, value interface{}) error {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h[HeaderSource] = fmt.Sprintf("dlq:%s", originTopic)
	return pub.Publish(ctx, dlqTopic, h, value)
}
