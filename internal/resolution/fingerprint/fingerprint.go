// Package fingerprint derives the deterministic identity key that the
// repository merges on. The key is a pure function of the normalized name,
// the vendor (or its absent sentinel), the entity, and the object type
// prefix: no sequence counters, no randomness, no insertion-order
// dependence, so re-running resolution over the same observations yields
// identical aggregate ids.
package fingerprint

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"dealroom/internal/resolution/models"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

// hashPrefixLen is how many hex characters of the digest go into the
// aggregate id. 32 bits is an accepted collision risk below ~100k aggregates
// per deal; the repository additionally compares the full key on every
// fingerprint hit, so a short-prefix collision can never merge two distinct
// objects.
const hashPrefixLen = 8

// Fingerprint is an aggregate's identity: the short public id plus the full
// identity key used for the widened comparison on lookup hits.
type Fingerprint struct {
	ID  id.AggregateID
	Key string
}

// New computes the fingerprint for an already-normalized name.
//
// The id has the form "{type_prefix}-{ENTITY}-{hash8}", e.g.
// "app-TARGET-1a2b3c4d". The key is the exact hash preimage
// "{name}|{vendor_key}|{entity}", kept alongside so equality of identity
// inputs can be re-checked without re-hashing.
//
// Errors: CodeInvalidInput when the normalized name is empty or the entity
// is invalid: an empty name must fail upstream in normalization and never
// reach hashing.
func New(normalizedName string, vendor models.Vendor, entity models.Entity, typePrefix string) (Fingerprint, error) {
	if normalizedName == "" {
		return Fingerprint{}, dErrors.New(dErrors.CodeInvalidInput, "normalized name cannot be empty")
	}
	if !entity.IsValid() {
		return Fingerprint{}, dErrors.New(dErrors.CodeInvalidInput, "invalid entity").Add("entity", string(entity))
	}
	if typePrefix == "" {
		return Fingerprint{}, dErrors.New(dErrors.CodeInvalidInput, "type prefix cannot be empty")
	}

	key := fmt.Sprintf("%s|%s|%s", normalizedName, vendor.Key(), entity)
	digest := blake2b.Sum256([]byte(key))
	hash8 := hex.EncodeToString(digest[:])[:hashPrefixLen]

	return Fingerprint{
		ID:  id.AggregateID(fmt.Sprintf("%s-%s-%s", typePrefix, entity.Tag(), hash8)),
		Key: key,
	}, nil
}
