package domain

import dErrors "dealroom/pkg/domain-errors"

// ObjectType is the kind of real-world business object an aggregate
// describes. Invariant: aggregates are never merged or fuzzy-matched across
// object types; each repository instance covers exactly one.
//
// Usage: construct via ParseObjectType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ObjectType string

const (
	ObjectTypeApplication    ObjectType = "application"
	ObjectTypeInfrastructure ObjectType = "infrastructure"
	ObjectTypePerson         ObjectType = "person"
)

// objectTypePrefixes is the single source of truth for valid object types
// and the prefix each contributes to aggregate identifiers.
var objectTypePrefixes = map[ObjectType]string{
	ObjectTypeApplication:    "app",
	ObjectTypeInfrastructure: "infra",
	ObjectTypePerson:         "person",
}

// ParseObjectType constructs an ObjectType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseObjectType(s string) (ObjectType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "object type cannot be empty")
	}
	t := ObjectType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid object type").Add("object_type", s)
	}
	return t, nil
}

// IsValid checks if the object type is one of the supported enum values.
func (t ObjectType) IsValid() bool {
	_, ok := objectTypePrefixes[t]
	return ok
}

// Prefix returns the identifier prefix for this object type ("app",
// "infra", "person").
func (t ObjectType) Prefix() string {
	return objectTypePrefixes[t]
}

// String returns the string representation of the object type.
func (t ObjectType) String() string {
	return string(t)
}
