package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type fakeProvider struct {
	descriptor ProviderDescriptor

	beginErr    error
	exchangeErr error
	revokeErr   error

	exchangeResult ExchangeResult
	verifyResult   VerifyResult
	verifyErr      error

	lastBeginAuthRequest BeginAuthRequest
	lastExchangeRequest  ExchangeRequest
	revokeCalls          int
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{
		descriptor: ProviderDescriptor{
			ID:                  id,
			DisplayName:         strings.ToUpper(id[:1]) + id[1:],
			Description:         "Test provider " + id,
			AuthURL:             "https://auth.example.com/" + id + "/authorize",
			TokenURL:            "https://auth.example.com/" + id + "/token",
			RevokeURL:           "https://auth.example.com/" + id + "/revoke",
			SupportedScopes:     []string{"identify", "profile"},
			DefaultScopes:       []string{"identify"},
			IssuesRefreshTokens: true,
		},
		exchangeResult: ExchangeResult{
			Credential: Credential{
				TokenType:    "bearer",
				AccessToken:  "access-" + id,
				RefreshToken: "refresh-" + id,
				Scopes:       []string{"identify"},
				Refreshable:  true,
			},
			GrantedScopes: []string{"identify"},
			IdentityLabel: "Account " + id,
		},
		verifyResult: VerifyResult{Valid: true, GrantedScopes: []string{"identify"}},
	}
}

func (p *fakeProvider) ID() string { return p.descriptor.ID }

func (p *fakeProvider) Descriptor() ProviderDescriptor { return p.descriptor }

func (p *fakeProvider) BeginAuth(_ context.Context, req BeginAuthRequest) (BeginAuthResponse, error) {
	p.lastBeginAuthRequest = req
	if p.beginErr != nil {
		return BeginAuthResponse{}, p.beginErr
	}
	return BeginAuthResponse{
		URL:             p.descriptor.AuthURL + "?state=" + req.State,
		State:           req.State,
		RequestedScopes: req.RequestedScopes,
	}, nil
}

func (p *fakeProvider) Exchange(_ context.Context, req ExchangeRequest) (ExchangeResult, error) {
	p.lastExchangeRequest = req
	if p.exchangeErr != nil {
		return ExchangeResult{}, p.exchangeErr
	}
	return p.exchangeResult, nil
}

func (p *fakeProvider) Refresh(context.Context, Credential) (ExchangeResult, error) {
	return p.exchangeResult, nil
}

func (p *fakeProvider) Revoke(context.Context, Credential) error {
	p.revokeCalls++
	return p.revokeErr
}

func (p *fakeProvider) Verify(context.Context, Credential) (VerifyResult, error) {
	if p.verifyErr != nil {
		return VerifyResult{}, p.verifyErr
	}
	return p.verifyResult, nil
}

type memoryVault struct {
	mu      sync.Mutex
	next    int
	secrets map[string]Credential

	storeErr error
}

func newMemoryVault() *memoryVault {
	return &memoryVault{secrets: map[string]Credential{}}
}

func (v *memoryVault) Store(_ context.Context, userID string, providerID string, cred Credential) (string, error) {
	if v.storeErr != nil {
		return "", v.storeErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.next++
	reference := fmt.Sprintf("vault-%s-%s-%d", userID, providerID, v.next)
	v.secrets[reference] = cred
	return reference, nil
}

func (v *memoryVault) Fetch(_ context.Context, reference string) (Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cred, ok := v.secrets[reference]
	if !ok {
		return Credential{}, fmt.Errorf("memory vault: reference not found")
	}
	return cred, nil
}

func (v *memoryVault) Destroy(_ context.Context, reference string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, reference)
	return nil
}

func (v *memoryVault) Rotate(_ context.Context, reference string, cred Credential) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.secrets[reference]; !ok {
		return "", fmt.Errorf("memory vault: reference not found")
	}
	v.secrets[reference] = cred
	return reference, nil
}

func (v *memoryVault) References(context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	refs := make([]string, 0, len(v.secrets))
	for reference := range v.secrets {
		refs = append(refs, reference)
	}
	sort.Strings(refs)
	return refs, nil
}

func (v *memoryVault) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.secrets)
}

func newTestService(t interface{ Fatalf(string, ...any) }, provider Provider, vault CredentialVault) (*Service, *MemoryLinkStore) {
	registry := NewProviderRegistry()
	if provider != nil {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider: %v", err)
		}
	}
	store := NewMemoryLinkStore()
	svc, err := NewService(
		Config{CallbackURL: "https://app.example.com/callback"},
		WithRegistry(registry),
		WithLinkStore(store),
		WithVault(vault),
		WithPendingAuthStore(NewMemoryPendingAuthStore(time.Minute)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}
