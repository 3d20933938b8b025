package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type linkRecord struct {
	bun.BaseModel `bun:"table:account_links,alias:al"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id,notnull"`
	ProviderID     string     `bun:"provider_id,notnull"`
	State          string     `bun:"state,notnull"`
	GrantedScopes  []string   `bun:"granted_scopes,type:jsonb,notnull"`
	CredentialRef  string     `bun:"credential_ref"`
	LinkedAt       *time.Time `bun:"linked_at,nullzero"`
	LastVerifiedAt *time.Time `bun:"last_verified_at,nullzero"`
	LastSyncNote   string     `bun:"last_sync_note"`
	LastError      string     `bun:"last_error"`
	Version        int        `bun:"version,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type pendingAuthRecord struct {
	bun.BaseModel `bun:"table:pending_authorizations,alias:pa"`

	State           string    `bun:"state,pk"`
	UserID          string    `bun:"user_id,notnull"`
	ProviderID      string    `bun:"provider_id,notnull"`
	RedirectURI     string    `bun:"redirect_uri"`
	RequestedScopes []string  `bun:"requested_scopes,type:jsonb,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt       time.Time `bun:"expires_at,notnull"`
}

type vaultItemRecord struct {
	bun.BaseModel `bun:"table:credential_vault_items,alias:cvi"`

	Reference  string    `bun:"reference,pk"`
	UserID     string    `bun:"user_id,notnull"`
	ProviderID string    `bun:"provider_id,notnull"`
	Ciphertext []byte    `bun:"ciphertext,notnull"`
	KeyID      string    `bun:"key_id,notnull"`
	KeyVersion int       `bun:"key_version,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
