package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/streamkit/go-linking/vault"
)

// VaultItemStore keeps sealed credential envelopes in SQL. Plaintext never
// reaches this layer, the vault seals before Save and opens after Get.
type VaultItemStore struct {
	db *bun.DB
}

func NewVaultItemStore(db *bun.DB) (*VaultItemStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &VaultItemStore{db: db}, nil
}

func (s *VaultItemStore) Save(ctx context.Context, item vault.Item) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: vault item store is not configured")
	}
	item.Reference = strings.TrimSpace(item.Reference)
	if item.Reference == "" {
		return fmt.Errorf("sqlstore: vault item reference is required")
	}
	if len(item.Ciphertext) == 0 {
		return fmt.Errorf("sqlstore: vault item ciphertext is required")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	record := newVaultItemRecord(item)
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (reference) DO UPDATE").
		Set("ciphertext = EXCLUDED.ciphertext").
		Set("key_id = EXCLUDED.key_id").
		Set("key_version = EXCLUDED.key_version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *VaultItemStore) Get(ctx context.Context, reference string) (vault.Item, bool, error) {
	if s == nil || s.db == nil {
		return vault.Item{}, false, fmt.Errorf("sqlstore: vault item store is not configured")
	}
	record := new(vaultItemRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("reference = ?", strings.TrimSpace(reference)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vault.Item{}, false, nil
		}
		return vault.Item{}, false, err
	}
	return record.toDomain(), true, nil
}

// Delete is a no-op for unknown references so credential destruction stays
// idempotent.
func (s *VaultItemStore) Delete(ctx context.Context, reference string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: vault item store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*vaultItemRecord)(nil)).
		Where("reference = ?", strings.TrimSpace(reference)).
		Exec(ctx)
	return err
}

func (s *VaultItemStore) ListReferences(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: vault item store is not configured")
	}
	var refs []string
	err := s.db.NewSelect().
		Model((*vaultItemRecord)(nil)).
		Column("reference").
		Order("reference ASC").
		Scan(ctx, &refs)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

var _ vault.ItemStore = (*VaultItemStore)(nil)
