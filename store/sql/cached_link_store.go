package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/streamkit/go-linking/core"
)

const linkCacheKeyPrefix = "go-linking::account_link::v1"

// CachedLinkStore serves point reads through a cache with write-through
// invalidation. List queries always hit the base store, staleness there
// feeds the reconciler and must not be masked by cached rows.
type CachedLinkStore struct {
	base  core.LinkStore
	cache repositorycache.CacheService
}

func NewCachedLinkStore(base core.LinkStore, cacheService repositorycache.CacheService) (*CachedLinkStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base link store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: link cache service is required")
	}
	return &CachedLinkStore{base: base, cache: cacheService}, nil
}

// LinkCacheKey returns the deterministic cache key for a link read:
// go-linking::account_link::v1::<user_id>::<provider_id> with each segment
// URL-path escaped.
func LinkCacheKey(userID string, providerID string) (string, error) {
	userID = strings.TrimSpace(userID)
	providerID = strings.TrimSpace(providerID)
	if userID == "" || providerID == "" {
		return "", fmt.Errorf("sqlstore: user id and provider id are required")
	}
	return strings.Join([]string{
		linkCacheKeyPrefix,
		url.PathEscape(userID),
		url.PathEscape(providerID),
	}, "::"), nil
}

type cachedLinkEntry struct {
	Record core.LinkRecord
	Found  bool
}

func (s *CachedLinkStore) Get(ctx context.Context, userID string, providerID string) (core.LinkRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkRecord{}, false, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	cacheKey, err := LinkCacheKey(userID, providerID)
	if err != nil {
		return core.LinkRecord{}, false, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedLinkEntry, error) {
		record, found, fetchErr := s.base.Get(ctx, userID, providerID)
		if fetchErr != nil {
			return cachedLinkEntry{}, fetchErr
		}
		return cachedLinkEntry{Record: record, Found: found}, nil
	})
	if err != nil {
		return core.LinkRecord{}, false, err
	}
	return entry.Record, entry.Found, nil
}

func (s *CachedLinkStore) Create(ctx context.Context, record core.LinkRecord) (core.LinkRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	created, err := s.base.Create(ctx, record)
	if err != nil {
		return core.LinkRecord{}, err
	}
	if err := s.invalidate(ctx, created.UserID, created.ProviderID); err != nil {
		return core.LinkRecord{}, err
	}
	return created, nil
}

func (s *CachedLinkStore) Update(ctx context.Context, record core.LinkRecord, expectedVersion int) (core.LinkRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	updated, err := s.base.Update(ctx, record, expectedVersion)
	if err != nil {
		return core.LinkRecord{}, err
	}
	if err := s.invalidate(ctx, updated.UserID, updated.ProviderID); err != nil {
		return core.LinkRecord{}, err
	}
	return updated, nil
}

func (s *CachedLinkStore) ListByUser(ctx context.Context, userID string) ([]core.LinkRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	return s.base.ListByUser(ctx, userID)
}

func (s *CachedLinkStore) ListStale(
	ctx context.Context,
	providerID string,
	state core.LinkState,
	verifiedBefore time.Time,
	limit int,
) ([]core.LinkRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	return s.base.ListStale(ctx, providerID, state, verifiedBefore, limit)
}

func (s *CachedLinkStore) ActiveCredentialRefs(ctx context.Context) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	return s.base.ActiveCredentialRefs(ctx)
}

func (s *CachedLinkStore) invalidate(ctx context.Context, userID string, providerID string) error {
	cacheKey, err := LinkCacheKey(userID, providerID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.LinkStore = (*CachedLinkStore)(nil)
