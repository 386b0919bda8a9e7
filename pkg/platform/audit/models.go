// Package audit defines the transport-agnostic audit trail for resolution
// runs. Events are emitted from kernel services and fanned out to a store or
// message bus by a publisher; they record what the resolver did to the data,
// not domain truth.
package audit

import (
	"time"

	"dealroom/pkg/attrs"
)

// Action names an auditable kernel operation.
type Action string

const (
	// ActionAggregateCreated: a new canonical record was registered.
	ActionAggregateCreated Action = "aggregate_created"
	// ActionObservationMerged: an observation was folded into an existing aggregate.
	ActionObservationMerged Action = "observation_merged"
	// ActionEntityMismatchRejected: an observation was rejected for disagreeing
	// with its aggregate's entity.
	ActionEntityMismatchRejected Action = "entity_mismatch_rejected"
	// ActionInvalidNameDropped: an observation was dropped because its name
	// normalized to nothing.
	ActionInvalidNameDropped Action = "invalid_name_dropped"
	// ActionDuplicateReconciled: reconciliation folded a near-duplicate
	// aggregate into a retained one.
	ActionDuplicateReconciled Action = "duplicate_reconciled"
	// ActionReconcileSkipped: the batch-size circuit breaker skipped a
	// reconciliation pass. Degraded mode, not failure.
	ActionReconcileSkipped Action = "reconcile_skipped"
)

// Event is emitted from kernel logic to capture one resolution action. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Action    Action
	Timestamp time.Time
	// DealID scopes the event to one transaction.
	DealID string
	// AggregateID is the canonical record acted upon, when applicable.
	AggregateID string
	// Details carries the remaining structured attributes from the call site.
	Details map[string]any
}

// NewEvent builds an event from slog-style alternating key/value attributes.
// Well-known keys (deal_id, aggregate_id) are lifted into dedicated fields.
func NewEvent(action Action, kv ...any) Event {
	e := Event{
		Action:      action,
		Timestamp:   time.Now().UTC(),
		DealID:      attrs.ExtractString(kv, "deal_id"),
		AggregateID: attrs.ExtractString(kv, "aggregate_id"),
		Details:     make(map[string]any),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if key == "deal_id" || key == "aggregate_id" {
			continue
		}
		e.Details[key] = kv[i+1]
	}
	return e
}
