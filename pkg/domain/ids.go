// Package domain holds the identifier and value types shared across the
// dealroom kernel and its adapters.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "dealroom/pkg/domain-errors"
)

// DealID identifies one transaction's fact-resolution scope. Repositories
// are scoped per (DealID, ObjectType); aggregates never cross deals.
type DealID string

// DocumentID identifies one source document within a deal. Extraction
// coordinator claims are scoped per document.
type DocumentID string

// ObservationID identifies one observation for audit correlation.
type ObservationID uuid.UUID

// AggregateID is the fingerprint-derived identity of an aggregate,
// e.g. "app-TARGET-1a2b3c4d". It is a pure function of the aggregate's
// identity inputs, stable across processes and runs.
type AggregateID string

// ParseDealID validates external input for a deal identifier.
//
// Errors: CodeInvalidInput when the value is empty or whitespace.
func ParseDealID(s string) (DealID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "deal id cannot be empty")
	}
	return DealID(s), nil
}

// ParseDocumentID validates external input for a document identifier.
func ParseDocumentID(s string) (DocumentID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document id cannot be empty")
	}
	return DocumentID(s), nil
}

// NewObservationID mints a fresh observation identifier.
func NewObservationID() ObservationID {
	return ObservationID(uuid.New())
}

// ParseObservationID constructs an ObservationID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or nil.
func ParseObservationID(s string) (ObservationID, error) {
	if s == "" {
		return ObservationID{}, dErrors.New(dErrors.CodeInvalidInput, "observation id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ObservationID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "observation id must be a valid UUID")
	}
	if u == uuid.Nil {
		return ObservationID{}, dErrors.New(dErrors.CodeInvalidInput, "observation id cannot be nil")
	}
	return ObservationID(u), nil
}

func (d DealID) String() string        { return string(d) }
func (d DocumentID) String() string    { return string(d) }
func (a AggregateID) String() string   { return string(a) }
func (o ObservationID) String() string { return uuid.UUID(o).String() }
