package models

import (
	"time"

	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

// Observation is one evidentiary data point about a business object, from
// one extraction pass over one document. Immutable: it is appended to
// exactly one aggregate and never mutated in place.
type Observation struct {
	ID          id.ObservationID
	SourceType  SourceType
	Confidence  float64
	Evidence    string
	ExtractedAt time.Time
	DealID      id.DealID
	Entity      Entity
	Payload     map[string]any
}

// NewObservation validates and constructs an observation. The payload map is
// copied so later adapter mutations cannot reach into the kernel.
//
// Errors: CodeInvalidInput for an invalid source type, entity, or a
// confidence outside [0, 1].
func NewObservation(
	sourceType SourceType,
	confidence float64,
	evidence string,
	extractedAt time.Time,
	dealID id.DealID,
	entity Entity,
	payload map[string]any,
) (Observation, error) {
	if !sourceType.IsValid() {
		return Observation{}, dErrors.New(dErrors.CodeInvalidInput, "invalid source type").Add("source_type", string(sourceType))
	}
	if !entity.IsValid() {
		return Observation{}, dErrors.New(dErrors.CodeInvalidInput, "invalid entity").Add("entity", string(entity))
	}
	if confidence < 0 || confidence > 1 {
		return Observation{}, dErrors.New(dErrors.CodeInvalidInput, "confidence must be within [0, 1]").Add("confidence", confidence)
	}
	if extractedAt.IsZero() {
		extractedAt = time.Now().UTC()
	}

	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	return Observation{
		ID:          id.NewObservationID(),
		SourceType:  sourceType,
		Confidence:  confidence,
		Evidence:    evidence,
		ExtractedAt: extractedAt,
		DealID:      dealID,
		Entity:      entity,
		Payload:     copied,
	}, nil
}
