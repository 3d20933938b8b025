package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type BeginAuthRequest struct {
	UserID          string
	RedirectURI     string
	State           string
	RequestedScopes []string
}

type BeginAuthResponse struct {
	URL             string
	State           string
	RequestedScopes []string
}

type ExchangeRequest struct {
	Code        string
	RedirectURI string
}

// ExchangeResult is what a provider returns from a completed code exchange or
// a refresh-token exchange.
type ExchangeResult struct {
	Credential    Credential
	GrantedScopes []string
	IdentityLabel string
}

// VerifyResult reports a liveness probe outcome. Valid=false means the
// provider explicitly reported the grant revoked or expired beyond refresh;
// transient failures surface as ProviderUnavailableError instead.
type VerifyResult struct {
	Valid         bool
	GrantedScopes []string
	IdentityLabel string
	Refreshed     *Credential
}

// Provider negotiates the authorization relationship with one external
// platform. Implementations wrap the descriptor's declared endpoints.
type Provider interface {
	ID() string
	Descriptor() ProviderDescriptor

	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error)
	Refresh(ctx context.Context, cred Credential) (ExchangeResult, error)
	Revoke(ctx context.Context, cred Credential) error
	Verify(ctx context.Context, cred Credential) (VerifyResult, error)
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

// LinkStore persists link records with per-key conditional writes. Update
// succeeds only when the stored version matches expectedVersion, incrementing
// the version; a mismatch yields an error wrapping ErrConflictingUpdate.
type LinkStore interface {
	Get(ctx context.Context, userID string, providerID string) (LinkRecord, bool, error)
	Create(ctx context.Context, record LinkRecord) (LinkRecord, error)
	Update(ctx context.Context, record LinkRecord, expectedVersion int) (LinkRecord, error)
	ListByUser(ctx context.Context, userID string) ([]LinkRecord, error)
	ListStale(ctx context.Context, providerID string, state LinkState, verifiedBefore time.Time, limit int) ([]LinkRecord, error)
	ActiveCredentialRefs(ctx context.Context) ([]string, error)
}

// CredentialVault owns credential material. Destroy is idempotent so that
// crash-recovery sweeps can re-issue it without coordination.
type CredentialVault interface {
	Store(ctx context.Context, userID string, providerID string, cred Credential) (string, error)
	Fetch(ctx context.Context, reference string) (Credential, error)
	Destroy(ctx context.Context, reference string) error
	Rotate(ctx context.Context, reference string, cred Credential) (string, error)
	References(ctx context.Context) ([]string, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type PendingAuthorization struct {
	State           string
	UserID          string
	ProviderID      string
	RedirectURI     string
	RequestedScopes []string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// PendingAuthStore holds single-use authorization nonces. Save replaces any
// live entry for the same (user, provider) pair so at most one pending
// authorization can validate per pair; Consume removes the entry first-use.
type PendingAuthStore interface {
	Save(ctx context.Context, record PendingAuthorization) error
	Consume(ctx context.Context, state string) (PendingAuthorization, error)
}

type AuthorizationIntent struct {
	URL             string
	State           string
	RequestedScopes []string
	ExpiresAt       time.Time
}

type CallbackParams struct {
	State            string
	Code             string
	ErrorCode        string
	ErrorDescription string
}

// LinkStatus is the read-only projection consumed by the presentation layer.
type LinkStatus struct {
	UserID          string
	ProviderID      string
	ProviderName    string
	Description     string
	Connected       bool
	State           LinkState
	Scopes          []string
	LinkedAt        *time.Time
	LastVerifiedAt  *time.Time
	SyncNote        string
	DisplaySyncNote string
}

// LinkingService is the sole contract exposed to the presentation layer and
// to internal services that consume link state.
type LinkingService interface {
	InitiateConnect(ctx context.Context, userID string, providerID string) (AuthorizationIntent, error)
	CompleteConnect(ctx context.Context, userID string, providerID string, params CallbackParams) (LinkStatus, error)
	Disconnect(ctx context.Context, userID string, providerID string) (LinkStatus, error)
	GetLinkStatus(ctx context.Context, userID string, providerID string) (LinkStatus, error)
	ListLinkStatuses(ctx context.Context, userID string) ([]LinkStatus, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}
