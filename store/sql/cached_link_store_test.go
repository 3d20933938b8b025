package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/streamkit/go-linking/core"
)

type stubLinkStore struct {
	mu       sync.Mutex
	record   core.LinkRecord
	found    bool
	getCalls int
}

func (s *stubLinkStore) Get(context.Context, string, string) (core.LinkRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	return s.record, s.found, nil
}

func (s *stubLinkStore) Create(_ context.Context, record core.LinkRecord) (core.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Version = 1
	s.record = record
	s.found = true
	return record, nil
}

func (s *stubLinkStore) Update(_ context.Context, record core.LinkRecord, expectedVersion int) (core.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Version = expectedVersion + 1
	s.record = record
	s.found = true
	return record, nil
}

func (s *stubLinkStore) ListByUser(context.Context, string) ([]core.LinkRecord, error) {
	return nil, nil
}

func (s *stubLinkStore) ListStale(context.Context, string, core.LinkState, time.Time, int) ([]core.LinkRecord, error) {
	return nil, nil
}

func (s *stubLinkStore) ActiveCredentialRefs(context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubLinkStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func newTestLinkCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedLinkStore_Get_MissFetchThenHit(t *testing.T) {
	base := &stubLinkStore{
		record: core.LinkRecord{
			ID:         "link_1",
			UserID:     "user-1",
			ProviderID: "discord",
			State:      core.LinkStateLinked,
			Version:    1,
		},
		found: true,
	}
	store, err := NewCachedLinkStore(base, newTestLinkCacheService(t))
	if err != nil {
		t.Fatalf("new cached link store: %v", err)
	}

	record, found, err := store.Get(context.Background(), "user-1", "discord")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if !found || record.ID != "link_1" {
		t.Fatalf("unexpected record: %#v found=%v", record, found)
	}
	if base.reads() != 1 {
		t.Fatalf("expected one base read, got %d", base.reads())
	}

	if _, _, err := store.Get(context.Background(), "user-1", "discord"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.reads() != 1 {
		t.Fatalf("expected second get to be a cache hit, base reads=%d", base.reads())
	}
}

func TestCachedLinkStore_CachesMisses(t *testing.T) {
	base := &stubLinkStore{}
	store, err := NewCachedLinkStore(base, newTestLinkCacheService(t))
	if err != nil {
		t.Fatalf("new cached link store: %v", err)
	}

	if _, found, err := store.Get(context.Background(), "user-1", "discord"); err != nil || found {
		t.Fatalf("expected cached miss, found=%v err=%v", found, err)
	}
	if _, found, err := store.Get(context.Background(), "user-1", "discord"); err != nil || found {
		t.Fatalf("expected cached miss, found=%v err=%v", found, err)
	}
	if base.reads() != 1 {
		t.Fatalf("expected miss to be cached after one base read, got %d", base.reads())
	}
}

func TestCachedLinkStore_UpdateInvalidatesCachedKey(t *testing.T) {
	base := &stubLinkStore{
		record: core.LinkRecord{
			ID:         "link_1",
			UserID:     "user-1",
			ProviderID: "discord",
			State:      core.LinkStateLinked,
			Version:    1,
		},
		found: true,
	}
	store, err := NewCachedLinkStore(base, newTestLinkCacheService(t))
	if err != nil {
		t.Fatalf("new cached link store: %v", err)
	}

	if _, _, err := store.Get(context.Background(), "user-1", "discord"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	updated := base.record
	updated.State = core.LinkStateRevoking
	if _, err := store.Update(context.Background(), updated, 1); err != nil {
		t.Fatalf("update through cached store: %v", err)
	}

	record, _, err := store.Get(context.Background(), "user-1", "discord")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if record.State != core.LinkStateRevoking {
		t.Fatalf("expected invalidated cache to serve fresh state, got %q", record.State)
	}
	if base.reads() != 2 {
		t.Fatalf("expected base refetch after invalidation, reads=%d", base.reads())
	}
}

func TestLinkCacheKey_EscapesSegments(t *testing.T) {
	key, err := LinkCacheKey("user/1", "discord")
	if err != nil {
		t.Fatalf("link cache key: %v", err)
	}
	want := linkCacheKeyPrefix + "::user%2F1::discord"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}

	if _, err := LinkCacheKey("", "discord"); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}
