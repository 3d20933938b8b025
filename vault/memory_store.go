package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryItemStore keeps encrypted items in process memory. Single-node and
// test use; production deployments wire the SQL-backed store instead.
type MemoryItemStore struct {
	mu    sync.Mutex
	items map[string]Item
}

func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{items: map[string]Item{}}
}

func (s *MemoryItemStore) Save(_ context.Context, item Item) error {
	if s == nil {
		return fmt.Errorf("vault: item store is not configured")
	}
	reference := strings.TrimSpace(item.Reference)
	if reference == "" {
		return fmt.Errorf("vault: item reference is required")
	}
	item.Reference = reference
	item.Ciphertext = append([]byte(nil), item.Ciphertext...)

	s.mu.Lock()
	s.items[reference] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryItemStore) Get(_ context.Context, reference string) (Item, bool, error) {
	if s == nil {
		return Item{}, false, fmt.Errorf("vault: item store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[strings.TrimSpace(reference)]
	if !ok {
		return Item{}, false, nil
	}
	item.Ciphertext = append([]byte(nil), item.Ciphertext...)
	return item, true, nil
}

func (s *MemoryItemStore) Delete(_ context.Context, reference string) error {
	if s == nil {
		return fmt.Errorf("vault: item store is not configured")
	}
	s.mu.Lock()
	delete(s.items, strings.TrimSpace(reference))
	s.mu.Unlock()
	return nil
}

func (s *MemoryItemStore) ListReferences(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("vault: item store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]string, 0, len(s.items))
	for reference := range s.items {
		refs = append(refs, reference)
	}
	sort.Strings(refs)
	return refs, nil
}

var _ ItemStore = (*MemoryItemStore)(nil)
