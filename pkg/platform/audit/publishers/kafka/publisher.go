// Package kafka publishes audit events to a Kafka (or Redpanda) topic so
// downstream compliance tooling can consume the resolution trail without
// touching the resolver's stores.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "dealroom/pkg/domain-errors"
	audit "dealroom/pkg/platform/audit"
)

const DefaultTopic = "dealroom.audit"

type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Publisher)

func WithTopic(topic string) Option {
	return func(p *Publisher) {
		p.topic = topic
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects to the given brokers and ensures the audit topic exists.
// Creation is best-effort: brokers with auto-create enabled make it a no-op,
// and "already exists" is not an error.
func New(ctx context.Context, brokers []string, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		topic:  DefaultTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(p.topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "connect kafka")
	}
	p.client = client

	if err := p.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, p.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "create audit topic")
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return dErrors.Wrap(resp.Err, dErrors.CodeUnavailable, "create audit topic")
	}
	return nil
}

// Emit produces one event, keyed by deal so a deal's trail stays ordered
// within a partition. The produce is synchronous; wrap this publisher in
// publisher.WithAsyncBuffer when callers must not block.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode audit event")
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.DealID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "produce audit event")
	}
	return nil
}

// Append lets the kafka sink stand behind publisher.Publisher as a store-like
// write target. Reads are not supported on this sink.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	return p.Emit(ctx, event)
}

func (p *Publisher) Close() {
	p.client.Close()
}
