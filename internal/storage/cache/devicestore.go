package cache

import (
	"context"
	"fmt"
	"time"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// CachedDeviceStore is a Decorator that adds Read-Aside caching to any DeviceStore.
type CachedDeviceStore struct {
	realStore routing.DeviceStore
	cache     CacheClient
	ttl       time.Duration
}

// NewCachedDeviceStore creates the decorator.
func NewCachedDeviceStore(realStore routing.DeviceStore, cache CacheClient, ttl time.Duration) *CachedDeviceStore {
	return &CachedDeviceStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedDeviceStore) Fetch(ctx context.Context, user urn.URN) ([]routing.Device, error) {
	key := s.cacheKey(user)
	var cached []routing.Device

	// 1. Try Cache
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		// Cache Hit
		return cached, nil
	}

	// 2. Fallback to Real Store (Firestore)
	fresh, err := s.realStore.Fetch(ctx, user)
	if err != nil {
		return nil, err
	}

	// 3. Populate Cache (Fire and Forget)
	// We ignore errors here because caching is an optimization, not a transaction.
	// If Redis is down, we just serve from DB.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedDeviceStore) Register(ctx context.Context, user urn.URN, device routing.Device) error {
	// 1. Write to Source of Truth
	if err := s.realStore.Register(ctx, user, device); err != nil {
		return err
	}
	// 2. Invalidate Cache
	return s.invalidate(ctx, user)
}

// Unregister must clear the cache even though the DB write already succeeded:
// a device that opted out stops being served immediately, not at TTL expiry.
func (s *CachedDeviceStore) Unregister(ctx context.Context, user urn.URN, token string) error {
	if err := s.realStore.Unregister(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

// --- Helpers ---

func (s *CachedDeviceStore) invalidate(ctx context.Context, user urn.URN) error {
	// We delete the key. The next Fetch will be forced to go to Firestore.
	return s.cache.Del(ctx, s.cacheKey(user))
}

func (s *CachedDeviceStore) cacheKey(user urn.URN) string {
	return fmt.Sprintf("dispatch:devices:%s", user.String())
}

var _ routing.DeviceStore = (*CachedDeviceStore)(nil)
