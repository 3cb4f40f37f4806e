package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// PersistentSeenStore is a Decorator that layers cross-launch persistence
// over an in-memory SeenStore. The external provider may redeliver the same
// cold-start message across multiple process launches; the in-memory set
// forgets everything on restart, so Redis remembers dispatched ids for a TTL.
//
// The memory layer stays the single serialization point for concurrent
// callers. Redis is an optimization, not a transaction: if it is down we fall
// back to the local verdict and keep serving.
type PersistentSeenStore struct {
	local  routing.SeenStore
	cache  CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewPersistentSeenStore creates the decorator. Entries older than ttl are
// evicted by Redis itself; this is the age bound complementing the local
// store's count bound.
func NewPersistentSeenStore(local routing.SeenStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *PersistentSeenStore {
	return &PersistentSeenStore{
		local:  local,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "PersistentSeenStore"),
	}
}

// MarkIfNew marks the id in both layers. The id is fresh only if neither
// layer has seen it: a replay from a previous launch is caught by Redis even
// though the local set started empty.
//
// The local set decides the race. Only the caller that won the local mark
// goes on to claim the Redis key; losers return false without touching
// Redis. If both layers raced on the NX slot independently, two concurrent
// calls could each see the other's claim and report zero winners.
func (s *PersistentSeenStore) MarkIfNew(ctx context.Context, id string) (bool, error) {
	localFresh, err := s.local.MarkIfNew(ctx, id)
	if err != nil {
		return false, err
	}
	if !localFresh {
		return false, nil
	}

	remoteFresh, err := s.cache.SetNX(ctx, s.key(id), time.Now().UTC(), s.ttl)
	if err != nil {
		s.logger.Warn("Redis unavailable; deduplicating with local set only", "err", err)
		return true, nil
	}

	return remoteFresh, nil
}

func (s *PersistentSeenStore) Seen(ctx context.Context, id string) (bool, error) {
	seen, err := s.local.Seen(ctx, id)
	if err != nil {
		return false, err
	}
	if seen {
		return true, nil
	}

	remoteSeen, err := s.cache.Exists(ctx, s.key(id))
	if err != nil {
		s.logger.Warn("Redis unavailable; answering from local set only", "err", err)
		return false, nil
	}
	return remoteSeen, nil
}

func (s *PersistentSeenStore) key(id string) string {
	return fmt.Sprintf("dispatch:seen:%s", id)
}

var _ routing.SeenStore = (*PersistentSeenStore)(nil)
