package models

import (
	"fmt"

	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
	pstrings "dealroom/pkg/platform/strings"
)

// Aggregate is the canonical deduplicated record for one real-world business
// object within one deal. Created on the first matching observation; mutated
// only by appending further observations and recomputing merged fields;
// never deleted within a run. Reconciliation marks losers superseded instead
// of removing them so observation provenance survives.
type Aggregate struct {
	ID            id.AggregateID
	FullKey       string
	ObjectType    id.ObjectType
	CanonicalName string
	DisplayName   string
	Vendor        Vendor
	Entity        Entity
	DealID        id.DealID
	Observations  []Observation
	MergedFields  map[string]any
	SupersededBy  id.AggregateID

	// singleValued lists payload fields that must not accumulate as a
	// union even when observed as lists. Declared per object type.
	singleValued map[string]bool
}

// NewAggregate constructs an empty aggregate for the given identity. The
// first observation is appended by the caller.
func NewAggregate(
	aggID id.AggregateID,
	fullKey string,
	objectType id.ObjectType,
	canonicalName, displayName string,
	vendor Vendor,
	entity Entity,
	dealID id.DealID,
	singleValued map[string]bool,
) *Aggregate {
	return &Aggregate{
		ID:            aggID,
		FullKey:       fullKey,
		ObjectType:    objectType,
		CanonicalName: canonicalName,
		DisplayName:   displayName,
		Vendor:        vendor,
		Entity:        entity,
		DealID:        dealID,
		MergedFields:  map[string]any{},
		singleValued:  singleValued,
	}
}

// Append adds an observation and recomputes merged fields.
//
// Errors: CodeEntityMismatch when the observation's entity disagrees with
// the aggregate's. Never auto-corrected; the caller decides whether to start
// a new aggregate.
func (a *Aggregate) Append(obs Observation) error {
	if obs.Entity != a.Entity {
		return dErrors.New(dErrors.CodeEntityMismatch, "observation entity disagrees with aggregate entity").
			Add("aggregate_id", a.ID.String()).
			Add("aggregate_entity", a.Entity.String()).
			Add("observation_entity", obs.Entity.String())
	}
	a.Observations = append(a.Observations, obs)
	a.recomputeMergedFields()
	return nil
}

// AbsorbObservations appends every observation of a duplicate aggregate.
// Used by reconciliation after the duplicate predicate matched; entities are
// re-checked per observation so I1 cannot be violated by a bad predicate.
func (a *Aggregate) AbsorbObservations(other *Aggregate) error {
	for _, obs := range other.Observations {
		if err := a.Append(obs); err != nil {
			return err
		}
	}
	return nil
}

// ObservationCount is exposed to consumers as a corroboration signal.
func (a *Aggregate) ObservationCount() int {
	return len(a.Observations)
}

// Superseded reports whether reconciliation folded this aggregate into
// another one.
func (a *Aggregate) Superseded() bool {
	return a.SupersededBy != ""
}

// MarkSuperseded records the retained aggregate this one was folded into.
func (a *Aggregate) MarkSuperseded(by id.AggregateID) {
	a.SupersededBy = by
}

// recomputeMergedFields derives MergedFields from scratch over all
// observations, so the result depends only on the observation set, not on
// arrival order. Scalar fields take the value from the highest-priority
// source type; ties at equal priority resolve to the most recently extracted
// observation. List-valued fields accumulate as a union unless the field is
// declared single-valued for this object type.
func (a *Aggregate) recomputeMergedFields() {
	type winner struct {
		obs   Observation
		value any
	}

	scalars := make(map[string]winner)
	lists := make(map[string][]any)
	listSeen := make(map[string]map[string]struct{})

	for _, obs := range a.Observations {
		for key, value := range obs.Payload {
			if items, isList := asList(value); isList && !a.singleValued[key] {
				if listSeen[key] == nil {
					listSeen[key] = make(map[string]struct{})
				}
				for _, item := range items {
					k := listElementKey(item)
					if _, dup := listSeen[key][k]; dup {
						continue
					}
					listSeen[key][k] = struct{}{}
					lists[key] = append(lists[key], item)
				}
				continue
			}

			current, exists := scalars[key]
			if !exists || beats(obs, current.obs) {
				scalars[key] = winner{obs: obs, value: value}
			}
		}
	}

	merged := make(map[string]any, len(scalars)+len(lists))
	for key, w := range scalars {
		merged[key] = w.value
	}
	for key, items := range lists {
		merged[key] = items
	}
	a.MergedFields = merged
}

// beats reports whether candidate outranks incumbent for a scalar field:
// strictly higher source priority, or equal priority and extracted no
// earlier.
func beats(candidate, incumbent Observation) bool {
	cp, ip := candidate.SourceType.Priority(), incumbent.SourceType.Priority()
	if cp != ip {
		return cp > ip
	}
	return !candidate.ExtractedAt.Before(incumbent.ExtractedAt)
}

// asList recognizes list-valued payload fields.
func asList(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// listElementKey gives union semantics: strings dedupe case-insensitively,
// everything else by printed value.
func listElementKey(v any) string {
	if s, ok := v.(string); ok {
		deduped := pstrings.DedupeAndTrimLower([]string{s})
		if len(deduped) == 1 {
			return "s:" + deduped[0]
		}
		return "s:"
	}
	return fmt.Sprintf("v:%v", v)
}
