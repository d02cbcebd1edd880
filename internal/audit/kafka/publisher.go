// Package kafka publishes audit events to the external audit topic.
//
// Delivery is fire-and-forget: the produce is asynchronous and failures are
// logged, never returned. The audit channel must not be able to abort or
// slow the primary workflow.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
)

// Publisher produces audit events to a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects a producer. Returns nil if no brokers are configured so
// callers can wire auditing as optional.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Emit serializes and produces the event. Errors are swallowed after
// logging; the caller never sees them.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WarnContext(ctx, "audit event marshal failed", "action", event.Action, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PackageID),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("audit event produce failed", "action", event.Action, "error", err)
		}
	})
}

// Close flushes pending produces and releases the client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.client.Flush(context.Background())
	p.client.Close()
}
