package router

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// DefaultSeenCapacity bounds the in-memory seen set. The provider may
// redeliver the same cold-start message across app launches, so the set must
// not grow for the process lifetime; evicting the oldest id after 200 distinct
// sends trades perfect lifetime deduplication for bounded memory.
const DefaultSeenCapacity = 200

// SeenSet is the in-memory routing.SeenStore: a count-bounded set of message
// ids, evicting oldest-inserted first. Safe for concurrent use.
type SeenSet struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeenSet creates a seen set holding at most capacity ids. A capacity of
// zero or less falls back to DefaultSeenCapacity.
func NewSeenSet(capacity int) (*SeenSet, error) {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &SeenSet{cache: cache}, nil
}

// MarkIfNew checks membership and inserts in one atomic step.
// Contains/ContainsOrAdd never promote an entry, so eviction order stays
// insertion order: the oldest id is always the one evicted.
func (s *SeenSet) MarkIfNew(_ context.Context, id string) (bool, error) {
	existed, _ := s.cache.ContainsOrAdd(id, struct{}{})
	return !existed, nil
}

// Seen reports membership without mutating the set.
func (s *SeenSet) Seen(_ context.Context, id string) (bool, error) {
	return s.cache.Contains(id), nil
}

// Len returns the number of ids currently held.
func (s *SeenSet) Len() int {
	return s.cache.Len()
}

var _ routing.SeenStore = (*SeenSet)(nil)
