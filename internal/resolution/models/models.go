// Package models defines the value types of the resolution kernel:
// transaction entities, observation source types, and the vendor value
// object with its explicit absent state.
package models

import (
	"strings"

	dErrors "dealroom/pkg/domain-errors"
)

// Entity is the transaction party an observation or aggregate belongs to.
// Invariant: immutable once stamped on an observation; the kernel never
// re-infers it. An aggregate never holds observations from more than one
// entity.
type Entity string

const (
	EntityTarget Entity = "target"
	EntityBuyer  Entity = "buyer"
)

var validEntities = map[Entity]bool{
	EntityTarget: true,
	EntityBuyer:  true,
}

// ParseEntity constructs an Entity from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseEntity(s string) (Entity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity cannot be empty")
	}
	e := Entity(strings.ToLower(s))
	if !e.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity: must be 'target' or 'buyer'")
	}
	return e, nil
}

// IsValid checks if the entity is one of the two transaction parties.
func (e Entity) IsValid() bool {
	return validEntities[e]
}

// String returns the lowercase representation.
func (e Entity) String() string {
	return string(e)
}

// Tag returns the uppercase form used inside aggregate identifiers
// ("TARGET", "BUYER").
func (e Entity) Tag() string {
	return strings.ToUpper(string(e))
}

// SourceType classifies the extraction pass that produced an observation.
// It drives merge priority: manually entered facts beat structured table
// extractions, which beat LLM prose readings, which beat LLM assumptions.
type SourceType string

const (
	SourceManual        SourceType = "manual"
	SourceTable         SourceType = "table"
	SourceLLMProse      SourceType = "llm_prose"
	SourceLLMAssumption SourceType = "llm_assumption"
)

var sourcePriorities = map[SourceType]int{
	SourceManual:        4,
	SourceTable:         3,
	SourceLLMProse:      2,
	SourceLLMAssumption: 1,
}

// ParseSourceType constructs a SourceType from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseSourceType(s string) (SourceType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "source type cannot be empty")
	}
	st := SourceType(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid source type").Add("source_type", s)
	}
	return st, nil
}

// IsValid checks if the source type is one of the supported enum values.
func (s SourceType) IsValid() bool {
	_, ok := sourcePriorities[s]
	return ok
}

// Priority returns the merge priority; higher wins. Zero for unknown types
// so a malformed source never beats a known one.
func (s SourceType) Priority() int {
	return sourcePriorities[s]
}

// String returns the string representation.
func (s SourceType) String() string {
	return string(s)
}

// absentVendorKey is the fingerprint component for "vendor absent". The NUL
// bytes keep it outside the normalized vendor character set, so no literal
// vendor string (including "unknown" or "None") can ever collide with it.
const absentVendorKey = "\x00vendor-absent\x00"

// Vendor is an optional vendor name. Absence is a first-class state distinct
// from every literal value; it is never normalized into a string a real
// vendor could later collide with.
type Vendor struct {
	name    string
	present bool
}

// NewVendor constructs a Vendor from adapter input. A value that is empty
// after trimming is treated as absent.
func NewVendor(s string) Vendor {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Vendor{}
	}
	return Vendor{name: trimmed, present: true}
}

// VendorAbsent returns the explicit absent vendor.
func VendorAbsent() Vendor {
	return Vendor{}
}

// Present reports whether a vendor name was supplied.
func (v Vendor) Present() bool { return v.present }

// Name returns the raw vendor name, or "" when absent.
func (v Vendor) Name() string { return v.name }

// Key returns the fingerprint component: the normalized vendor name, or the
// absent sentinel. A vendor whose name normalizes to nothing is keyed as
// absent rather than as an empty string.
func (v Vendor) Key() string {
	if !v.present {
		return absentVendorKey
	}
	normalized := normalizeVendor(v.name)
	if normalized == "" {
		return absentVendorKey
	}
	return normalized
}

// normalizeVendor lowercases, strips characters outside [a-z0-9 -], and
// collapses whitespace. Vendors get no suffix stripping.
func normalizeVendor(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
