// Package reconcile merges near-duplicate aggregates that differ enough in
// spelling or vendor to produce different fingerprints. It runs outside any
// request-latency budget, triggered explicitly by a caller, and is
// cooperatively cancellable between aggregates: merges are additive and
// idempotent, so cancellation needs no rollback.
package reconcile

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dealroom/internal/resolution/metrics"
	"dealroom/internal/resolution/models"
	"dealroom/internal/resolution/ports"
	id "dealroom/pkg/domain"
	"dealroom/pkg/platform/audit"
)

// DefaultMaxItems is the batch-size circuit breaker threshold. An unbounded
// pairwise comparison must never execute inline; batches past this size are
// skipped entirely and should be sharded by another key or run as an
// explicitly scheduled background job.
const DefaultMaxItems = 500

// Repository is the slice of the aggregate repository reconciliation needs.
type Repository interface {
	Live() []*models.Aggregate
	FindSimilar(name string, threshold float64, limit int) ([]*models.Aggregate, error)
	MarkSuperseded(ctx context.Context, winnerID, loserID id.AggregateID) error
	DealID() id.DealID
}

// IsDuplicateOf is the caller-supplied predicate applied to candidates that
// already passed the similarity threshold. It may compare vendors and other
// type-specific fields; the kernel itself never judges domain truth.
type IsDuplicateOf func(retained, candidate *models.Aggregate) bool

// Result reports the outcome of one reconciliation pass.
type Result struct {
	// Merges is the number of aggregates folded into a retained one.
	Merges int
	// Skipped is the soft, non-exceptional signal that the circuit breaker
	// triggered: degraded mode, not failure.
	Skipped bool
	// BatchSize is the number of live aggregates submitted.
	BatchSize int
}

// Service runs bounded-cost near-duplicate passes over a repository.
type Service struct {
	maxItems  int
	threshold float64
	limit     int

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   ports.AuditPublisher
	tracer  trace.Tracer
}

// Option configures the service.
type Option func(*Service)

// WithMaxItems overrides the circuit breaker threshold.
func WithMaxItems(n int) Option {
	return func(s *Service) { s.maxItems = n }
}

// WithThreshold overrides the fuzzy-match similarity threshold. Tunable,
// not load-bearing-correct.
func WithThreshold(t float64) Option {
	return func(s *Service) { s.threshold = t }
}

// WithCandidateLimit overrides how many similar aggregates are considered
// per probe.
func WithCandidateLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the kernel metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher sets the audit event sink.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

// New constructs a reconciliation service with spec defaults (500 items,
// 0.85 similarity, 5 candidates).
func New(opts ...Option) *Service {
	s := &Service{
		maxItems:  DefaultMaxItems,
		threshold: 0.85,
		limit:     5,
		tracer:    otel.Tracer("dealroom/internal/resolution/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile runs one pass over the repository's live aggregates. For each
// aggregate it looks up similar candidates; a candidate scoring at or above
// the threshold, carrying the same entity, and accepted by isDup is folded
// into the retained aggregate and marked superseded.
//
// If the batch exceeds the MaxItems breaker the pass is skipped entirely
// and Result.Skipped is set; no error is returned because degraded mode is
// not failure. Cancellation between aggregates returns the partial result
// with ctx.Err().
func (s *Service) Reconcile(ctx context.Context, repo Repository, isDup IsDuplicateOf) (Result, error) {
	batch := repo.Live()
	result := Result{BatchSize: len(batch)}

	ctx, span := s.tracer.Start(ctx, "reconcile.pass", trace.WithAttributes(
		attribute.String("deal_id", repo.DealID().String()),
		attribute.Int("batch_size", len(batch)),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("merges", result.Merges),
			attribute.Bool("skipped", result.Skipped),
		)
		span.End()
	}()

	s.metrics.ObserveReconcileBatch(len(batch))

	if len(batch) > s.maxItems {
		result.Skipped = true
		s.metrics.IncReconcileSkips()
		ports.LogAudit(ctx, s.logger, s.audit, audit.ActionReconcileSkipped,
			"deal_id", repo.DealID().String(),
			"batch_size", len(batch),
			"max_items", s.maxItems,
		)
		return result, nil
	}

	for _, agg := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		// May have been folded into an earlier aggregate during this pass.
		if agg.Superseded() {
			continue
		}

		candidates, err := repo.FindSimilar(agg.DisplayName, s.threshold, s.limit)
		if err != nil {
			// A display name that was accepted at insertion cannot stop
			// normalizing; treat a failure here as a bug worth surfacing.
			return result, err
		}

		for _, candidate := range candidates {
			if candidate.ID == agg.ID || candidate.Superseded() {
				continue
			}
			// Entity isolation holds through reconciliation: similar names
			// on opposite transaction parties are distinct objects.
			if candidate.Entity != agg.Entity {
				continue
			}
			if isDup != nil && !isDup(agg, candidate) {
				continue
			}
			if err := repo.MarkSuperseded(ctx, agg.ID, candidate.ID); err != nil {
				return result, err
			}
			result.Merges++
		}
	}

	s.metrics.AddReconcileMerges(result.Merges)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "reconciliation pass complete",
			"deal_id", repo.DealID().String(),
			"batch_size", result.BatchSize,
			"merges", result.Merges,
		)
	}
	return result, nil
}

// SameVendorOrEitherAbsent is a conservative default duplicate predicate:
// two aggregates are duplicates only when their vendors agree, where an
// absent vendor agrees with anything.
func SameVendorOrEitherAbsent(retained, candidate *models.Aggregate) bool {
	if !retained.Vendor.Present() || !candidate.Vendor.Present() {
		return true
	}
	return retained.Vendor.Key() == candidate.Vendor.Key()
}
