// Package publisher moves audit events from kernel call sites into a store.
// It supports a synchronous mode (default) and a buffered async mode for hot
// paths where audit persistence must not block resolution.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "dealroom/pkg/domain-errors"
	audit "dealroom/pkg/platform/audit"
)

// Store is the persistence surface the publisher writes through. It is
// append-only; reads exist so operators can inspect a run's trail.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	ListByDeal(ctx context.Context, dealID string) ([]audit.Event, error)
}

type Publisher struct {
	store  Store
	logger *slog.Logger

	// buf is nil in sync mode.
	buf       chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given channel
// capacity. Events beyond capacity are dropped rather than blocking callers.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buf = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buf != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event. In sync mode the store write happens inline; in
// async mode the event is queued and Emit returns immediately. A full buffer
// drops the event with an error so callers can count losses.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.buf == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buf <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return dErrors.New(dErrors.CodeUnavailable, "audit buffer full")
	}
}

func (p *Publisher) List(ctx context.Context, dealID string) ([]audit.Event, error) {
	return p.store.ListByDeal(ctx, dealID)
}

// Close stops the async worker after flushing queued events. Safe to call in
// sync mode and safe to call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.buf != nil {
			close(p.buf)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buf {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Warn("audit append failed, event lost",
				"action", string(event.Action),
				"deal_id", event.DealID,
				"error", err,
			)
		}
	}
}
