// Package normalize canonicalizes object names ahead of fingerprinting.
//
// The pipeline is deliberately conservative: lowercase, trim, strip
// characters outside [a-z0-9 -], collapse whitespace, and for applications
// only, remove at most one trailing token that exactly matches a fixed
// whitelist. Stripping never touches the middle of a name, never removes
// more than one token, and never produces an empty result. That keeps
// "sap erp" and "sap successfactors" apart while still folding
// "Salesforce CRM" into "salesforce".
package normalize

import (
	"strings"

	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

// DefaultApplicationSuffixes is the trailing-token whitelist for
// application names. Generic product-category words that vendors bolt onto
// a brand; tuned from observed extraction output.
var DefaultApplicationSuffixes = []string{
	"crm", "erp", "online", "cloud", "suite", "platform", "app", "system", "software",
}

// Rules holds the per-object-type suffix whitelists. Zero objects types
// other than those listed apply no suffix stripping.
type Rules struct {
	suffixes map[id.ObjectType]map[string]struct{}
}

// Option configures Rules.
type Option func(*Rules)

// WithSuffixWhitelist replaces the trailing-token whitelist for one object type.
func WithSuffixWhitelist(objectType id.ObjectType, tokens []string) Option {
	return func(r *Rules) {
		set := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			set[strings.ToLower(strings.TrimSpace(tok))] = struct{}{}
		}
		r.suffixes[objectType] = set
	}
}

// NewRules builds normalization rules with the default application suffix
// whitelist, overridable per object type.
func NewRules(opts ...Option) *Rules {
	r := &Rules{suffixes: make(map[id.ObjectType]map[string]struct{})}
	WithSuffixWhitelist(id.ObjectTypeApplication, DefaultApplicationSuffixes)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize canonicalizes a raw name for the given object type.
//
// Errors: CodeInvalidName when the result is empty (all-punctuation or blank
// input). Such names must be dropped by the caller, never filed under a
// wildcard key.
func (r *Rules) Normalize(raw string, objectType id.ObjectType) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, ch := range lowered {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == ' ', ch == '-':
			b.WriteRune(ch)
		}
	}

	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidName, "name normalized to empty").Add("raw_name", raw)
	}

	// At most one trailing whitelist token, and never down to nothing.
	if whitelist := r.suffixes[objectType]; len(whitelist) > 0 && len(tokens) > 1 {
		if _, ok := whitelist[tokens[len(tokens)-1]]; ok {
			tokens = tokens[:len(tokens)-1]
		}
	}

	return strings.Join(tokens, " "), nil
}
