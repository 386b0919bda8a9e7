// Package repository owns the fingerprint-indexed aggregates for one
// (deal, object type) pair. FindOrCreate is the only insertion path: it
// normalizes, fingerprints, and merges-or-creates inside a single-writer
// critical section, so two racing extraction workers can never create two
// aggregates for the same fingerprint.
//
// Repositories are explicit, injectable objects: one instance per deal and
// object type, passed to adapters by reference, never a process-wide
// singleton. No lock is held across repositories.
package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dealroom/internal/resolution/fingerprint"
	"dealroom/internal/resolution/metrics"
	"dealroom/internal/resolution/models"
	"dealroom/internal/resolution/normalize"
	"dealroom/internal/resolution/ports"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
	"dealroom/pkg/platform/audit"
	pstrings "dealroom/pkg/platform/strings"
)

// Defaults for the similarity lookup used by reconciliation. Tunable, not
// load-bearing-correct.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultSimilarityLimit     = 5
)

// Repository stores the aggregates of one object type within one deal.
type Repository struct {
	mu sync.RWMutex

	dealID     id.DealID
	objectType id.ObjectType

	rules        *normalize.Rules
	singleValued map[string]bool

	byID  map[id.AggregateID]*models.Aggregate
	order []id.AggregateID // registration order, for deterministic iteration

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   ports.AuditPublisher
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithMetrics sets the kernel metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// WithAuditPublisher sets the audit event sink.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(r *Repository) { r.audit = p }
}

// WithNormalizationRules overrides the default normalization rules.
func WithNormalizationRules(rules *normalize.Rules) Option {
	return func(r *Repository) { r.rules = rules }
}

// WithSingleValuedFields declares payload fields that must not accumulate as
// a union for this object type.
func WithSingleValuedFields(fields ...string) Option {
	return func(r *Repository) {
		for _, f := range fields {
			r.singleValued[f] = true
		}
	}
}

// New constructs a repository for one (deal, object type) pair.
func New(dealID id.DealID, objectType id.ObjectType, opts ...Option) (*Repository, error) {
	if dealID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "deal id is required")
	}
	if !objectType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid object type").Add("object_type", objectType.String())
	}

	r := &Repository{
		dealID:       dealID,
		objectType:   objectType,
		rules:        normalize.NewRules(),
		singleValued: make(map[string]bool),
		byID:         make(map[id.AggregateID]*models.Aggregate),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DealID returns the deal this repository is scoped to.
func (r *Repository) DealID() id.DealID { return r.dealID }

// ObjectType returns the object type this repository covers.
func (r *Repository) ObjectType() id.ObjectType { return r.objectType }

// FindOrCreateInput carries one observed fact into the repository.
type FindOrCreateInput struct {
	Name        string
	Entity      models.Entity
	Vendor      models.Vendor
	SourceType  models.SourceType
	Confidence  float64
	Evidence    string
	ExtractedAt time.Time
	Payload     map[string]any
}

// FindOrCreate resolves an observed fact to its canonical aggregate,
// creating one on first sight and merging on every later sighting. On a
// fingerprint hit the full identity key is compared before the match is
// trusted, so a short-hash collision surfaces as CodeConflict instead of
// silently merging two distinct objects.
//
// Errors: CodeInvalidName (dropped name), CodeInvalidInput (bad observation
// fields), CodeConflict (hash-prefix collision). The triggering observation
// is never filed under a wildcard key; retry/drop/log policy belongs to the
// calling adapter.
func (r *Repository) FindOrCreate(ctx context.Context, input FindOrCreateInput) (*models.Aggregate, error) {
	normalized, err := r.rules.Normalize(input.Name, r.objectType)
	if err != nil {
		r.metrics.IncInvalidNames()
		ports.LogAudit(ctx, r.logger, r.audit, audit.ActionInvalidNameDropped,
			"deal_id", r.dealID.String(),
			"raw_name", input.Name,
		)
		return nil, err
	}

	fp, err := fingerprint.New(normalized, input.Vendor, input.Entity, r.objectType.Prefix())
	if err != nil {
		return nil, err
	}

	obs, err := models.NewObservation(
		input.SourceType, input.Confidence, input.Evidence,
		input.ExtractedAt, r.dealID, input.Entity, input.Payload,
	)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[fp.ID]; ok {
		if existing.FullKey != fp.Key {
			return nil, dErrors.New(dErrors.CodeConflict, "fingerprint hash collision between distinct identities").
				Add("aggregate_id", fp.ID.String()).
				Add("existing_key", existing.FullKey).
				Add("candidate_key", fp.Key)
		}
		if err := existing.Append(obs); err != nil {
			// Unreachable while entity is a fingerprint component; kept as a
			// hard invariant check.
			r.metrics.IncEntityMismatches()
			return nil, err
		}
		r.metrics.IncObservationsMerged(r.objectType.String(), input.Entity.String())
		return existing, nil
	}

	agg := models.NewAggregate(
		fp.ID, fp.Key, r.objectType,
		normalized, input.Name,
		input.Vendor, input.Entity, r.dealID,
		r.singleValued,
	)
	if err := agg.Append(obs); err != nil {
		return nil, err
	}

	r.byID[fp.ID] = agg
	r.order = append(r.order, fp.ID)

	r.metrics.IncAggregatesCreated(r.objectType.String(), input.Entity.String())
	ports.LogAudit(ctx, r.logger, r.audit, audit.ActionAggregateCreated,
		"deal_id", r.dealID.String(),
		"aggregate_id", fp.ID.String(),
		"canonical_name", normalized,
		"entity", input.Entity.String(),
	)
	return agg, nil
}

// AddObservation appends an already-built observation to a known aggregate.
//
// Errors: CodeNotFound for an unknown aggregate id; CodeEntityMismatch when
// the observation's entity disagrees with the aggregate's (never
// auto-corrected; the caller decides whether to start a new aggregate).
func (r *Repository) AddObservation(ctx context.Context, aggregateID id.AggregateID, obs models.Observation) (*models.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg, ok := r.byID[aggregateID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "aggregate not found").Add("aggregate_id", aggregateID.String())
	}
	if err := agg.Append(obs); err != nil {
		r.metrics.IncEntityMismatches()
		ports.LogAudit(ctx, r.logger, r.audit, audit.ActionEntityMismatchRejected,
			"deal_id", r.dealID.String(),
			"aggregate_id", aggregateID.String(),
			"aggregate_entity", agg.Entity.String(),
			"observation_entity", obs.Entity.String(),
		)
		return nil, err
	}
	r.metrics.IncObservationsMerged(r.objectType.String(), agg.Entity.String())
	return agg, nil
}

// FindByID returns the aggregate for an id, superseded or not.
func (r *Repository) FindByID(aggregateID id.AggregateID) (*models.Aggregate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agg, ok := r.byID[aggregateID]
	return agg, ok
}

// FindByEntity returns all live (non-superseded) aggregates for one
// transaction party, in registration order.
func (r *Repository) FindByEntity(entity models.Entity) []*models.Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Aggregate
	for _, aggID := range r.order {
		agg := r.byID[aggID]
		if agg.Entity == entity && !agg.Superseded() {
			out = append(out, agg)
		}
	}
	return out
}

// Live returns all non-superseded aggregates in registration order. This is
// the batch reconciliation operates on.
func (r *Repository) Live() []*models.Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Aggregate, 0, len(r.order))
	for _, aggID := range r.order {
		if agg := r.byID[aggID]; !agg.Superseded() {
			out = append(out, agg)
		}
	}
	return out
}

// All returns every aggregate including superseded ones, in registration
// order. Superseded aggregates keep their observation provenance.
func (r *Repository) All() []*models.Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Aggregate, 0, len(r.order))
	for _, aggID := range r.order {
		out = append(out, r.byID[aggID])
	}
	return out
}

// scored pairs an aggregate with its similarity to a probe name.
type scored struct {
	agg   *models.Aggregate
	score float64
}

// FindSimilar returns live aggregates whose canonical name has Jaccard token
// similarity >= threshold with the probe name, best first, capped at limit.
// Approximate lookup for the reconciliation service only; the synchronous
// insertion path never calls it.
func (r *Repository) FindSimilar(name string, threshold float64, limit int) ([]*models.Aggregate, error) {
	normalized, err := r.rules.Normalize(name, r.objectType)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if limit <= 0 {
		limit = DefaultSimilarityLimit
	}
	probe := pstrings.TokenSet(normalized)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []scored
	for _, aggID := range r.order {
		agg := r.byID[aggID]
		if agg.Superseded() {
			continue
		}
		score := pstrings.Jaccard(probe, pstrings.TokenSet(agg.CanonicalName))
		if score >= threshold {
			candidates = append(candidates, scored{agg: agg, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*models.Aggregate, len(candidates))
	for i, c := range candidates {
		out[i] = c.agg
	}
	return out, nil
}

// MarkSuperseded folds loser into winner's identity for consumers: loser is
// flagged and excluded from FindByEntity/Live from then on. Observation
// transfer itself happens through winner.AbsorbObservations under the
// repository lock via this call.
func (r *Repository) MarkSuperseded(ctx context.Context, winnerID, loserID id.AggregateID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner, ok := r.byID[winnerID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "winner aggregate not found").Add("aggregate_id", winnerID.String())
	}
	loser, ok := r.byID[loserID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "loser aggregate not found").Add("aggregate_id", loserID.String())
	}
	if winnerID == loserID {
		return dErrors.New(dErrors.CodeInvalidInput, "aggregate cannot supersede itself").Add("aggregate_id", winnerID.String())
	}
	if loser.Superseded() {
		// Idempotent: reconciliation may revisit a pair after cancellation.
		return nil
	}

	if err := winner.AbsorbObservations(loser); err != nil {
		return err
	}
	loser.MarkSuperseded(winnerID)

	ports.LogAudit(ctx, r.logger, r.audit, audit.ActionDuplicateReconciled,
		"deal_id", r.dealID.String(),
		"aggregate_id", winnerID.String(),
		"superseded_id", loserID.String(),
	)
	return nil
}
