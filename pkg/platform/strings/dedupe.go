// Package strings provides string manipulation utilities shared by the
// resolution kernel (list-field union merging, token similarity).
package strings

import (
	"strings"
)

// DedupeAndTrimLower removes duplicates and empty strings from a slice,
// trimming whitespace and lowercasing each element. Order of first
// occurrence is preserved. Used for case-insensitive union merging of
// list-valued observation fields.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  FOO ", "bar", "Foo", ""})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// TokenSet splits a normalized name into its unique whitespace-separated
// tokens. Input is expected to already be normalized (lowercase, collapsed
// whitespace); the function does not re-normalize.
func TokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard returns the Jaccard similarity of two token sets: the size of the
// intersection divided by the size of the union. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
