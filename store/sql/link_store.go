package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/streamkit/go-linking/core"
)

type LinkStore struct {
	db   *bun.DB
	repo repository.Repository[*linkRecord]
}

func NewLinkStore(db *bun.DB) (*LinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*linkRecord](db, linkHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid link repository wiring: %w", err)
		}
	}
	return &LinkStore{db: db, repo: repo}, nil
}

func (s *LinkStore) Get(ctx context.Context, userID string, providerID string) (core.LinkRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.LinkRecord{}, false, fmt.Errorf("sqlstore: link store is not configured")
	}
	record := new(linkRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("provider_id = ?", strings.TrimSpace(providerID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LinkRecord{}, false, nil
		}
		return core.LinkRecord{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *LinkStore) Create(ctx context.Context, in core.LinkRecord) (core.LinkRecord, error) {
	if s == nil || s.db == nil {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	in.UserID = strings.TrimSpace(in.UserID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	if in.UserID == "" || in.ProviderID == "" {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: user id and provider id are required")
	}
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	in.Version = 1

	record := newLinkRecord(in)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.LinkRecord{}, fmt.Errorf(
				"sqlstore: link for user %q and provider %q already exists: %w",
				in.UserID, in.ProviderID, core.ErrConflictingUpdate,
			)
		}
		return core.LinkRecord{}, err
	}
	return created.toDomain(), nil
}

// Update writes the record only when the stored version still matches
// expectedVersion. A lost race surfaces as core.ErrConflictingUpdate.
func (s *LinkStore) Update(ctx context.Context, in core.LinkRecord, expectedVersion int) (core.LinkRecord, error) {
	if s == nil || s.db == nil {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if strings.TrimSpace(in.ID) == "" {
		return core.LinkRecord{}, fmt.Errorf("sqlstore: link id is required")
	}

	in.UpdatedAt = time.Now().UTC()
	in.Version = expectedVersion + 1
	record := newLinkRecord(in)

	res, err := s.db.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return core.LinkRecord{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.LinkRecord{}, err
	}
	if affected == 0 {
		exists, existsErr := s.db.NewSelect().
			Model((*linkRecord)(nil)).
			Where("id = ?", record.ID).
			Exists(ctx)
		if existsErr != nil {
			return core.LinkRecord{}, existsErr
		}
		if !exists {
			return core.LinkRecord{}, fmt.Errorf("sqlstore: link %q: %w", record.ID, core.ErrLinkNotFound)
		}
		return core.LinkRecord{}, fmt.Errorf(
			"sqlstore: link %q version %d is stale: %w",
			record.ID, expectedVersion, core.ErrConflictingUpdate,
		)
	}
	return record.toDomain(), nil
}

func (s *LinkStore) ListByUser(ctx context.Context, userID string) ([]core.LinkRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: link store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("provider_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.LinkRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *LinkStore) ListStale(
	ctx context.Context,
	providerID string,
	state core.LinkState,
	verifiedBefore time.Time,
	limit int,
) ([]core.LinkRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: link store is not configured")
	}
	var records []*linkRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("provider_id = ?", strings.TrimSpace(providerID)).
		Where("state = ?", string(state)).
		Where("last_verified_at IS NULL OR last_verified_at < ?", verifiedBefore).
		OrderExpr("last_verified_at IS NOT NULL, last_verified_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.LinkRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *LinkStore) ActiveCredentialRefs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: link store is not configured")
	}
	var refs []string
	err := s.db.NewSelect().
		Model((*linkRecord)(nil)).
		Column("credential_ref").
		Where("credential_ref <> ''").
		Order("credential_ref ASC").
		Scan(ctx, &refs)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key")
}

var _ core.LinkStore = (*LinkStore)(nil)
