package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/streamkit/go-linking/core"
)

// PendingAuthStore persists single-use authorization nonces. Saving a new
// nonce for a (user, provider) pair replaces any previous one, so only the
// most recent redirect can complete.
type PendingAuthStore struct {
	db *bun.DB
}

func NewPendingAuthStore(db *bun.DB) (*PendingAuthStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &PendingAuthStore{db: db}, nil
}

func (s *PendingAuthStore) Save(ctx context.Context, in core.PendingAuthorization) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	in.State = strings.TrimSpace(in.State)
	in.UserID = strings.TrimSpace(in.UserID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	if in.State == "" {
		return fmt.Errorf("sqlstore: pending authorization state is required")
	}
	if in.UserID == "" || in.ProviderID == "" {
		return fmt.Errorf("sqlstore: user id and provider id are required")
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	record := newPendingAuthRecord(in)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*pendingAuthRecord)(nil)).
			Where("user_id = ?", in.UserID).
			Where("provider_id = ?", in.ProviderID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func (s *PendingAuthStore) Consume(ctx context.Context, state string) (core.PendingAuthorization, error) {
	if s == nil || s.db == nil {
		return core.PendingAuthorization{}, fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.PendingAuthorization{}, fmt.Errorf("sqlstore: pending authorization state is required")
	}

	record := new(pendingAuthRecord)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(record).
			Where("state = ?", state).
			Limit(1).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sqlstore: pending authorization state not found")
			}
			return err
		}

		// deleted regardless of expiry, the nonce is single use
		_, err := tx.NewDelete().
			Model((*pendingAuthRecord)(nil)).
			Where("state = ?", state).
			Exec(ctx)
		return err
	})
	if err != nil {
		return core.PendingAuthorization{}, err
	}

	// expiry is reported only after the delete commits
	if time.Now().UTC().After(record.ExpiresAt) {
		return core.PendingAuthorization{}, fmt.Errorf("sqlstore: pending authorization state expired")
	}
	return record.toDomain(), nil
}

// PruneExpired removes nonces past their deadline and returns the count.
func (s *PendingAuthStore) PruneExpired(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: pending auth store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*pendingAuthRecord)(nil)).
		Where("expires_at < ?", time.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

var _ core.PendingAuthStore = (*PendingAuthStore)(nil)
