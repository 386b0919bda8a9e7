package coordinator

import (
	"context"
	"sync"

	id "dealroom/pkg/domain"
)

// MemoryStore implements ports.ClaimStore with an in-process map. The
// default for single-process runs and the fallback when a shared store is
// unavailable.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[string][]string
}

// NewMemoryStore creates an empty in-memory claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string][]string)}
}

// Put registers a claim; re-claiming the same (doc, name, domain) is a no-op.
func (s *MemoryStore) Put(_ context.Context, docID id.DocumentID, normalizedName, domain string) error {
	key := claimKey(docID, normalizedName)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.claims[key] {
		if d == domain {
			return nil
		}
	}
	s.claims[key] = append(s.claims[key], domain)
	return nil
}

// Get returns the claiming domains in claim order.
func (s *MemoryStore) Get(_ context.Context, docID id.DocumentID, normalizedName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.claims[claimKey(docID, normalizedName)]...), nil
}

func claimKey(docID id.DocumentID, normalizedName string) string {
	return docID.String() + "\x00" + normalizedName
}
