package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPendingAuthTTL        = 10 * time.Minute
	defaultPendingAuthMaxEntries = 4096
)

// MemoryPendingAuthStore keeps live nonces in process memory. Entries are
// single-use (Consume deletes first), pruned on save when expired, and capped
// so an abandoned-redirect flood cannot grow the map unbounded. Saving a record
// for a (user, provider) pair replaces any prior live entry for that pair.
type MemoryPendingAuthStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]PendingAuthorization
	nowFn      func() time.Time
}

func NewMemoryPendingAuthStore(ttl time.Duration) *MemoryPendingAuthStore {
	return NewMemoryPendingAuthStoreWithLimits(ttl, defaultPendingAuthMaxEntries)
}

func NewMemoryPendingAuthStoreWithLimits(ttl time.Duration, maxEntries int) *MemoryPendingAuthStore {
	if ttl <= 0 {
		ttl = DefaultPendingAuthTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultPendingAuthMaxEntries
	}
	return &MemoryPendingAuthStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]PendingAuthorization{},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryPendingAuthStore) Save(_ context.Context, record PendingAuthorization) error {
	if s == nil {
		return fmt.Errorf("core: pending auth store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: pending authorization state is required")
	}

	now := s.nowFn()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}
	record.State = state
	record.RequestedScopes = cloneScopes(record.RequestedScopes)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.entries {
		if now.After(existing.ExpiresAt) {
			delete(s.entries, key)
			continue
		}
		if existing.UserID == record.UserID && existing.ProviderID == record.ProviderID {
			delete(s.entries, key)
		}
	}
	if len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[state] = record
	return nil
}

func (s *MemoryPendingAuthStore) Consume(_ context.Context, state string) (PendingAuthorization, error) {
	if s == nil {
		return PendingAuthorization{}, fmt.Errorf("core: pending auth store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return PendingAuthorization{}, fmt.Errorf("core: pending authorization state is required")
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return PendingAuthorization{}, fmt.Errorf("core: pending authorization state not found")
	}
	if s.nowFn().After(record.ExpiresAt) {
		return PendingAuthorization{}, fmt.Errorf("core: pending authorization state expired")
	}
	record.RequestedScopes = cloneScopes(record.RequestedScopes)
	return record, nil
}

func (s *MemoryPendingAuthStore) evictOldestLocked() {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].CreatedAt.Before(s.entries[keys[j]].CreatedAt)
	})
	overflow := len(s.entries) - s.maxEntries + 1
	for i := 0; i < overflow && i < len(keys); i++ {
		delete(s.entries, keys[i])
	}
}

// GenerateAuthState returns a fresh cryptographically random nonce for the
// authorization redirect state parameter.
func GenerateAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate authorization state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ PendingAuthStore = (*MemoryPendingAuthStore)(nil)
