package core

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidLinkStateTransition = errors.New("core: invalid link state transition")
	ErrConflictingUpdate          = errors.New("core: conflicting update")
	ErrLinkNotFound               = errors.New("core: link record not found")
	ErrInvalidProviderDescriptor  = errors.New("core: invalid provider descriptor")
)

type LinkState string

const (
	LinkStateUnlinked    LinkState = "unlinked"
	LinkStateAuthorizing LinkState = "authorizing"
	LinkStateLinked      LinkState = "linked"
	LinkStateRevoking    LinkState = "revoking"
)

// LinkRecord is the per user×provider lifecycle entity. A missing row is
// equivalent to LinkStateUnlinked; rows are retained after unlinking for audit,
// only the vault credential is destroyed.
type LinkRecord struct {
	ID             string
	UserID         string
	ProviderID     string
	State          LinkState
	GrantedScopes  []string
	CredentialRef  string
	LinkedAt       *time.Time
	LastVerifiedAt *time.Time
	LastSyncNote   string
	LastError      string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *LinkRecord) TransitionTo(state LinkState, reason string, now time.Time) error {
	if r == nil {
		return nil
	}
	if r.State == state {
		r.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			r.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !linkTransitionAllowed(r.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidLinkStateTransition, r.State, state)
	}
	r.State = state
	r.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		r.LastError = strings.TrimSpace(reason)
	}
	if state == LinkStateLinked {
		r.LastError = ""
	}
	if state == LinkStateUnlinked {
		r.GrantedScopes = []string{}
		r.CredentialRef = ""
		r.LinkedAt = nil
		r.LastSyncNote = ""
	}
	return nil
}

func linkTransitionAllowed(current, next LinkState) bool {
	allowed := map[LinkState]map[LinkState]struct{}{
		LinkStateUnlinked: {
			LinkStateAuthorizing: {},
		},
		LinkStateAuthorizing: {
			LinkStateLinked:   {},
			LinkStateUnlinked: {},
		},
		LinkStateLinked: {
			LinkStateRevoking: {},
			LinkStateUnlinked: {},
		},
		LinkStateRevoking: {
			LinkStateUnlinked: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// ProviderDescriptor is the configuration-loaded declaration of an external
// identity provider's shape. RevokeURL is empty for providers without remote
// revocation support.
type ProviderDescriptor struct {
	ID                  string
	DisplayName         string
	Description         string
	AuthURL             string
	TokenURL            string
	RevokeURL           string
	SupportedScopes     []string
	DefaultScopes       []string
	IssuesRefreshTokens bool
}

func (d ProviderDescriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidProviderDescriptor)
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required for %q", ErrInvalidProviderDescriptor, d.ID)
	}
	if len(NormalizeScopes(d.SupportedScopes)) == 0 {
		return fmt.Errorf("%w: provider %q declares no supported scopes", ErrInvalidProviderDescriptor, d.ID)
	}
	for _, scope := range NormalizeScopes(d.DefaultScopes) {
		if !ScopeSupported(d.SupportedScopes, scope) {
			return fmt.Errorf("%w: default scope %q is not in the supported set for %q", ErrInvalidProviderDescriptor, scope, d.ID)
		}
	}
	if err := validateEndpoint(d.AuthURL); err != nil {
		return fmt.Errorf("%w: malformed auth endpoint for %q: %v", ErrInvalidProviderDescriptor, d.ID, err)
	}
	if err := validateEndpoint(d.TokenURL); err != nil {
		return fmt.Errorf("%w: malformed token endpoint for %q: %v", ErrInvalidProviderDescriptor, d.ID, err)
	}
	if strings.TrimSpace(d.RevokeURL) != "" {
		if err := validateEndpoint(d.RevokeURL); err != nil {
			return fmt.Errorf("%w: malformed revocation endpoint for %q: %v", ErrInvalidProviderDescriptor, d.ID, err)
		}
	}
	return nil
}

func (d ProviderDescriptor) SupportsRevocation() bool {
	return strings.TrimSpace(d.RevokeURL) != ""
}

func validateEndpoint(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return err
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Credential is decrypted token material. It never leaves the vault boundary
// except for provider calls; link records carry only an opaque reference.
type Credential struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scopes       []string
	ExpiresAt    *time.Time
	Refreshable  bool
}

func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.UTC().After(c.ExpiresAt.UTC())
}

// NormalizeScopes lowercases, trims, dedupes, and sorts a scope list.
func NormalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(strings.ToLower(value))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	sort.Strings(values)
	return values
}

func ScopeSupported(supported []string, scope string) bool {
	scope = strings.TrimSpace(strings.ToLower(scope))
	for _, candidate := range supported {
		if strings.TrimSpace(strings.ToLower(candidate)) == scope {
			return true
		}
	}
	return false
}

// IntersectScopes returns the granted scopes that the descriptor actually
// supports, normalized.
func IntersectScopes(supported []string, granted []string) []string {
	out := make([]string, 0, len(granted))
	for _, scope := range NormalizeScopes(granted) {
		if ScopeSupported(supported, scope) {
			out = append(out, scope)
		}
	}
	return out
}

func cloneScopes(input []string) []string {
	return append([]string(nil), input...)
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
