package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLinkStore is the in-process LinkStore used for tests and single-node
// deployments. Writes go through the same conditional-version check as the
// SQL store so callers see identical conflict semantics.
type MemoryLinkStore struct {
	mu      sync.Mutex
	records map[string]LinkRecord
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{
		records: map[string]LinkRecord{},
	}
}

func linkKey(userID string, providerID string) string {
	return strings.TrimSpace(userID) + "|" + strings.TrimSpace(providerID)
}

func (s *MemoryLinkStore) Get(_ context.Context, userID string, providerID string) (LinkRecord, bool, error) {
	if s == nil {
		return LinkRecord{}, false, fmt.Errorf("core: link store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[linkKey(userID, providerID)]
	if !ok {
		return LinkRecord{}, false, nil
	}
	return cloneLinkRecord(record), true, nil
}

func (s *MemoryLinkStore) Create(_ context.Context, record LinkRecord) (LinkRecord, error) {
	if s == nil {
		return LinkRecord{}, fmt.Errorf("core: link store is not configured")
	}
	userID := strings.TrimSpace(record.UserID)
	providerID := strings.TrimSpace(record.ProviderID)
	if userID == "" || providerID == "" {
		return LinkRecord{}, fmt.Errorf("core: user id and provider id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(userID, providerID)
	if _, exists := s.records[key]; exists {
		return LinkRecord{}, fmt.Errorf("core: link record already exists: %w", ErrConflictingUpdate)
	}

	record.UserID = userID
	record.ProviderID = providerID
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	record.Version = 1
	s.records[key] = cloneLinkRecord(record)
	return cloneLinkRecord(record), nil
}

func (s *MemoryLinkStore) Update(_ context.Context, record LinkRecord, expectedVersion int) (LinkRecord, error) {
	if s == nil {
		return LinkRecord{}, fmt.Errorf("core: link store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(record.UserID, record.ProviderID)
	existing, ok := s.records[key]
	if !ok {
		return LinkRecord{}, fmt.Errorf("core: link record not found for provider %q: %w", record.ProviderID, ErrLinkNotFound)
	}
	if existing.Version != expectedVersion {
		return LinkRecord{}, fmt.Errorf(
			"core: link record version mismatch, expected %d found %d: %w",
			expectedVersion, existing.Version, ErrConflictingUpdate,
		)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	record.Version = existing.Version + 1
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	s.records[key] = cloneLinkRecord(record)
	return cloneLinkRecord(record), nil
}

func (s *MemoryLinkStore) ListByUser(_ context.Context, userID string) ([]LinkRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: link store is not configured")
	}
	userID = strings.TrimSpace(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LinkRecord, 0)
	for _, record := range s.records {
		if record.UserID == userID {
			out = append(out, cloneLinkRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProviderID < out[j].ProviderID
	})
	return out, nil
}

func (s *MemoryLinkStore) ListStale(_ context.Context, providerID string, state LinkState, verifiedBefore time.Time, limit int) ([]LinkRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: link store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LinkRecord, 0)
	for _, record := range s.records {
		if providerID != "" && record.ProviderID != providerID {
			continue
		}
		if record.State != state {
			continue
		}
		if record.LastVerifiedAt != nil && !record.LastVerifiedAt.Before(verifiedBefore) {
			continue
		}
		out = append(out, cloneLinkRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		left, right := out[i].LastVerifiedAt, out[j].LastVerifiedAt
		if left == nil {
			return right != nil
		}
		if right == nil {
			return false
		}
		return left.Before(*right)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryLinkStore) ActiveCredentialRefs(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("core: link store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]string, 0)
	for _, record := range s.records {
		if strings.TrimSpace(record.CredentialRef) != "" {
			refs = append(refs, record.CredentialRef)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func cloneLinkRecord(record LinkRecord) LinkRecord {
	record.GrantedScopes = cloneScopes(record.GrantedScopes)
	record.LinkedAt = cloneTimePointer(record.LinkedAt)
	record.LastVerifiedAt = cloneTimePointer(record.LastVerifiedAt)
	return record
}

var _ LinkStore = (*MemoryLinkStore)(nil)
