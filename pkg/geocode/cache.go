package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Cache persists resolved locations by address key. Misses are cached too,
// as empty Locations. A failed call must leave any enclosing transaction
// usable, since CachedResolver carries on after cache errors.
type Cache interface {
	// GetLocation returns the cached location for key, or nil on a miss.
	GetLocation(ctx context.Context, key string) (*Location, error)
	PutLocation(ctx context.Context, key string, loc Location) error
}

// CacheKey returns the SHA-256 hex of the normalized address.
func CacheKey(address string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// CachedResolver consults a Cache before delegating to another Resolver.
type CachedResolver struct {
	next  Resolver
	cache Cache
}

// NewCachedResolver wraps next with cache.
func NewCachedResolver(next Resolver, cache Cache) *CachedResolver {
	return &CachedResolver{next: next, cache: cache}
}

// Resolve implements Resolver. A failed cache read falls back to next and
// a failed cache write is skipped; both are logged. Errors from next are
// returned as-is.
func (r *CachedResolver) Resolve(ctx context.Context, address string) (Location, error) {
	key := CacheKey(address)

	cached, err := r.cache.GetLocation(ctx, key)
	if err != nil {
		zap.L().Warn("geocode cache read failed", zap.Error(err))
	} else if cached != nil {
		zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.Bool("matched", !cached.Empty()))
		return *cached, nil
	}

	loc, err := r.next.Resolve(ctx, address)
	if err != nil {
		return Location{}, err
	}

	if err := r.cache.PutLocation(ctx, key, loc); err != nil {
		zap.L().Warn("geocode cache write failed", zap.Error(err))
	}
	return loc, nil
}

var _ Resolver = (*CachedResolver)(nil)
