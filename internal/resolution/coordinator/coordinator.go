// Package coordinator tracks which extraction domain claimed an
// (document, entity name) source span, so two extractors do not double-count
// the same fact. It is purely advisory: it never mutates an aggregate, and
// callers decide whether to skip, merge, or flag on conflict.
package coordinator

import (
	"context"
	"log/slog"
	"strings"

	"dealroom/internal/resolution/ports"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
	"dealroom/pkg/platform/circuit"
)

// Coordinator answers extraction bookkeeping questions against a primary
// claim store, degrading to an in-memory fallback through a circuit breaker
// when the primary misbehaves (e.g. a Redis outage in multi-process
// extraction fleets). With no primary configured it runs memory-only.
type Coordinator struct {
	primary  ports.ClaimStore
	fallback ports.ClaimStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithPrimaryStore sets a shared claim store (typically Redis) tried before
// the in-memory fallback.
func WithPrimaryStore(store ports.ClaimStore) Option {
	return func(c *Coordinator) { c.primary = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithBreaker overrides the circuit breaker guarding the primary store.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Coordinator) { c.breaker = b }
}

// New constructs a coordinator with an in-memory fallback store.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		fallback: NewMemoryStore(),
		breaker:  circuit.New("claim-store"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarkExtracted records that domain extracted entityName from docID.
// Idempotent per (doc, name, domain).
func (c *Coordinator) MarkExtracted(ctx context.Context, docID id.DocumentID, entityName, domain string) error {
	name, err := claimKeyName(entityName)
	if err != nil {
		return err
	}
	if domain = strings.ToLower(strings.TrimSpace(domain)); domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "extraction domain cannot be empty")
	}
	return c.withStore(ctx, func(store ports.ClaimStore) error {
		return store.Put(ctx, docID, name, domain)
	})
}

// AlreadyExtracted reports whether domain already claimed (doc, name).
func (c *Coordinator) AlreadyExtracted(ctx context.Context, docID id.DocumentID, entityName, domain string) (bool, error) {
	domains, err := c.claims(ctx, docID, entityName)
	if err != nil {
		return false, err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range domains {
		if d == domain {
			return true, nil
		}
	}
	return false, nil
}

// AlreadyExtractedByAnyDomain reports whether any domain claimed (doc, name).
func (c *Coordinator) AlreadyExtractedByAnyDomain(ctx context.Context, docID id.DocumentID, entityName string) (bool, error) {
	domains, err := c.claims(ctx, docID, entityName)
	if err != nil {
		return false, err
	}
	return len(domains) > 0, nil
}

// GetExtractingDomain returns the first domain that claimed (doc, name),
// or ok=false when unclaimed.
func (c *Coordinator) GetExtractingDomain(ctx context.Context, docID id.DocumentID, entityName string) (string, bool, error) {
	domains, err := c.claims(ctx, docID, entityName)
	if err != nil {
		return "", false, err
	}
	if len(domains) == 0 {
		return "", false, nil
	}
	return domains[0], true, nil
}

func (c *Coordinator) claims(ctx context.Context, docID id.DocumentID, entityName string) ([]string, error) {
	name, err := claimKeyName(entityName)
	if err != nil {
		return nil, err
	}
	var domains []string
	err = c.withStore(ctx, func(store ports.ClaimStore) error {
		var getErr error
		domains, getErr = store.Get(ctx, docID, name)
		return getErr
	})
	return domains, err
}

// withStore routes a call to the primary store unless the breaker is open,
// falling back to memory on primary failure. Fallback results can lag the
// primary during an outage; acceptable for advisory bookkeeping.
func (c *Coordinator) withStore(ctx context.Context, op func(ports.ClaimStore) error) error {
	if c.primary == nil || c.breaker.IsOpen() {
		if c.primary != nil {
			// Probe the primary for recovery without trusting its answer.
			if err := op(c.primary); err == nil {
				if usePrimary, change := c.breaker.RecordSuccess(); usePrimary {
					if change.Closed && c.logger != nil {
						c.logger.InfoContext(ctx, "claim store circuit closed, primary restored")
					}
					return nil
				}
			} else {
				c.breaker.RecordFailure()
			}
		}
		return op(c.fallback)
	}

	if err := op(c.primary); err != nil {
		useFallback, change := c.breaker.RecordFailure()
		if change.Opened && c.logger != nil {
			c.logger.WarnContext(ctx, "claim store circuit opened, degrading to in-memory claims", "error", err)
		}
		if useFallback {
			return op(c.fallback)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "claim store unreachable")
	}
	c.breaker.RecordSuccess()
	return nil
}

// claimKeyName canonicalizes the entity name component of a claim key:
// case-insensitive, whitespace-insensitive.
func claimKeyName(entityName string) (string, error) {
	name := strings.Join(strings.Fields(strings.ToLower(entityName)), " ")
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity name cannot be empty")
	}
	return name, nil
}
