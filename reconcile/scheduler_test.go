package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streamkit/go-linking/core"
)

type verifyProvider struct {
	id         string
	descriptor core.ProviderDescriptor
	verifyFn   func(ctx context.Context, cred core.Credential) (core.VerifyResult, error)

	mu          sync.Mutex
	verifyCalls int
}

func newVerifyProvider(id string) *verifyProvider {
	return &verifyProvider{
		id: id,
		descriptor: core.ProviderDescriptor{
			ID:              id,
			DisplayName:     id,
			AuthURL:         "https://" + id + ".example.com/authorize",
			TokenURL:        "https://" + id + ".example.com/token",
			SupportedScopes: []string{"identify", "profile"},
			DefaultScopes:   []string{"identify"},
		},
		verifyFn: func(context.Context, core.Credential) (core.VerifyResult, error) {
			return core.VerifyResult{Valid: true}, nil
		},
	}
}

func (p *verifyProvider) ID() string { return p.id }

func (p *verifyProvider) Descriptor() core.ProviderDescriptor { return p.descriptor }

func (p *verifyProvider) BeginAuth(context.Context, core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	return core.BeginAuthResponse{}, fmt.Errorf("not used")
}

func (p *verifyProvider) Exchange(context.Context, core.ExchangeRequest) (core.ExchangeResult, error) {
	return core.ExchangeResult{}, fmt.Errorf("not used")
}

func (p *verifyProvider) Refresh(context.Context, core.Credential) (core.ExchangeResult, error) {
	return core.ExchangeResult{}, fmt.Errorf("not used")
}

func (p *verifyProvider) Revoke(context.Context, core.Credential) error { return nil }

func (p *verifyProvider) Verify(ctx context.Context, cred core.Credential) (core.VerifyResult, error) {
	p.mu.Lock()
	p.verifyCalls++
	p.mu.Unlock()
	return p.verifyFn(ctx, cred)
}

func (p *verifyProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyCalls
}

type plainVault struct {
	mu    sync.Mutex
	next  int
	items map[string]core.Credential
}

func newPlainVault() *plainVault {
	return &plainVault{items: map[string]core.Credential{}}
}

func (v *plainVault) Store(_ context.Context, userID, providerID string, cred core.Credential) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.next++
	reference := fmt.Sprintf("vault-%s-%s-%d", userID, providerID, v.next)
	v.items[reference] = cred
	return reference, nil
}

func (v *plainVault) Fetch(_ context.Context, reference string) (core.Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cred, ok := v.items[reference]
	if !ok {
		return core.Credential{}, fmt.Errorf("reference %q not found", reference)
	}
	return cred, nil
}

func (v *plainVault) Destroy(_ context.Context, reference string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.items, reference)
	return nil
}

func (v *plainVault) Rotate(_ context.Context, reference string, cred core.Credential) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.items[reference]; !ok {
		return "", fmt.Errorf("reference %q not found", reference)
	}
	v.items[reference] = cred
	return reference, nil
}

func (v *plainVault) References(context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	refs := make([]string, 0, len(v.items))
	for reference := range v.items {
		refs = append(refs, reference)
	}
	return refs, nil
}

func (v *plainVault) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

type schedulerFixture struct {
	scheduler *Scheduler
	registry  *core.ProviderRegistry
	store     *core.MemoryLinkStore
	vault     *plainVault
	now       time.Time
}

func newSchedulerFixture(t *testing.T, providers ...*verifyProvider) *schedulerFixture {
	t.Helper()

	registry := core.NewProviderRegistry()
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider %q: %v", provider.ID(), err)
		}
	}

	fixture := &schedulerFixture{
		registry: registry,
		store:    core.NewMemoryLinkStore(),
		vault:    newPlainVault(),
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	scheduler, err := NewScheduler(
		core.ReconcileConfig{
			Interval:           time.Minute,
			FreshnessThreshold: 30 * time.Minute,
			BatchSize:          10,
			BackoffInitial:     time.Minute,
			BackoffMax:         10 * time.Minute,
		},
		registry,
		fixture.store,
		fixture.vault,
		WithClock(func() time.Time { return fixture.now }),
	)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	fixture.scheduler = scheduler
	return fixture
}

func (f *schedulerFixture) seedLink(t *testing.T, userID, providerID string, verifiedAgo time.Duration) core.LinkRecord {
	t.Helper()

	reference, err := f.vault.Store(context.Background(), userID, providerID, core.Credential{
		TokenType:   "Bearer",
		AccessToken: "at-" + userID,
	})
	if err != nil {
		t.Fatalf("store credential: %v", err)
	}

	verifiedAt := f.now.Add(-verifiedAgo)
	linkedAt := f.now.Add(-verifiedAgo - time.Hour)
	record, err := f.store.Create(context.Background(), core.LinkRecord{
		UserID:         userID,
		ProviderID:     providerID,
		State:          core.LinkStateLinked,
		GrantedScopes:  []string{"identify"},
		CredentialRef:  reference,
		LinkedAt:       &linkedAt,
		LastVerifiedAt: &verifiedAt,
		LastSyncNote:   "Account " + userID,
		CreatedAt:      linkedAt,
		UpdatedAt:      verifiedAt,
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return record
}

func (f *schedulerFixture) seedAuthorizing(t *testing.T, userID, providerID string, startedAgo time.Duration) core.LinkRecord {
	t.Helper()

	startedAt := f.now.Add(-startedAgo)
	record, err := f.store.Create(context.Background(), core.LinkRecord{
		UserID:     userID,
		ProviderID: providerID,
		State:      core.LinkStateAuthorizing,
		CreatedAt:  startedAt,
		UpdatedAt:  startedAt,
	})
	if err != nil {
		t.Fatalf("create authorizing record: %v", err)
	}
	return record
}

func (f *schedulerFixture) mustGet(t *testing.T, userID, providerID string) core.LinkRecord {
	t.Helper()
	record, found, err := f.store.Get(context.Background(), userID, providerID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !found {
		t.Fatalf("record for %s/%s not found", userID, providerID)
	}
	return record
}

func TestSweepConfirmsStaleLink(t *testing.T) {
	provider := newVerifyProvider("discord")
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{Valid: true, IdentityLabel: "Fresh Name"}, nil
	}
	fixture := newSchedulerFixture(t, provider)
	seeded := fixture.seedLink(t, "user-1", "discord", time.Hour)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Checked != 1 || report.Confirmed != 1 {
		t.Fatalf("report = %+v, want 1 checked, 1 confirmed", report)
	}

	record := fixture.mustGet(t, "user-1", "discord")
	if record.State != core.LinkStateLinked {
		t.Fatalf("state = %q, want linked", record.State)
	}
	if record.LastVerifiedAt == nil || !record.LastVerifiedAt.Equal(fixture.now) {
		t.Fatalf("last verified at = %v, want %v", record.LastVerifiedAt, fixture.now)
	}
	if record.Version != seeded.Version+1 {
		t.Fatalf("version = %d, want %d", record.Version, seeded.Version+1)
	}
	if record.LastSyncNote != "Fresh Name" {
		t.Fatalf("sync note = %q, want refreshed identity label", record.LastSyncNote)
	}
}

func TestSweepSkipsFreshLinks(t *testing.T) {
	provider := newVerifyProvider("discord")
	fixture := newSchedulerFixture(t, provider)
	fixture.seedLink(t, "user-1", "discord", 5*time.Minute)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Checked != 0 {
		t.Fatalf("checked = %d, want 0 for a freshly verified link", report.Checked)
	}
	if provider.calls() != 0 {
		t.Fatalf("verify calls = %d, want 0", provider.calls())
	}
}

func TestSweepAbandonsExpiredAuthorizingRecords(t *testing.T) {
	provider := newVerifyProvider("discord")
	fixture := newSchedulerFixture(t, provider)
	stale := fixture.seedAuthorizing(t, "user-old", "discord", 2*time.Hour)
	fixture.seedAuthorizing(t, "user-new", "discord", time.Minute)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Abandoned != 1 {
		t.Fatalf("report = %+v, want 1 abandoned", report)
	}

	abandoned := fixture.mustGet(t, "user-old", "discord")
	if abandoned.State != core.LinkStateUnlinked {
		t.Fatalf("state = %q, want unlinked", abandoned.State)
	}
	if abandoned.LastError != "authorization expired without callback" {
		t.Fatalf("last error = %q, want expiry reason", abandoned.LastError)
	}
	if abandoned.Version != stale.Version+1 {
		t.Fatalf("version = %d, want %d", abandoned.Version, stale.Version+1)
	}

	fresh := fixture.mustGet(t, "user-new", "discord")
	if fresh.State != core.LinkStateAuthorizing {
		t.Fatalf("state = %q, want the open callback window left alone", fresh.State)
	}
	if calls := provider.calls(); calls != 0 {
		t.Fatalf("verify calls = %d, abandonment must not probe the provider", calls)
	}
}

func TestSweepUnlinksOnExternalRevocation(t *testing.T) {
	provider := newVerifyProvider("discord")
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{Valid: false}, nil
	}
	fixture := newSchedulerFixture(t, provider)
	fixture.seedLink(t, "user-1", "discord", time.Hour)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Revoked != 1 {
		t.Fatalf("report = %+v, want 1 revoked", report)
	}

	record := fixture.mustGet(t, "user-1", "discord")
	if record.State != core.LinkStateUnlinked {
		t.Fatalf("state = %q, want unlinked", record.State)
	}
	if record.CredentialRef != "" {
		t.Fatalf("credential ref = %q, want cleared", record.CredentialRef)
	}
	if record.LastError != "provider reported revocation" {
		t.Fatalf("last error = %q, want revocation reason", record.LastError)
	}
	if fixture.vault.count() != 0 {
		t.Fatalf("vault holds %d credentials, want 0", fixture.vault.count())
	}
}

func TestSweepRotatesRefreshedCredential(t *testing.T) {
	provider := newVerifyProvider("youtube")
	refreshed := core.Credential{TokenType: "Bearer", AccessToken: "at-rotated", Refreshable: true}
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{Valid: true, Refreshed: &refreshed}, nil
	}
	fixture := newSchedulerFixture(t, provider)
	record := fixture.seedLink(t, "user-1", "youtube", time.Hour)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Rotated != 1 {
		t.Fatalf("report = %+v, want 1 rotated", report)
	}

	cred, err := fixture.vault.Fetch(context.Background(), record.CredentialRef)
	if err != nil {
		t.Fatalf("fetch rotated credential: %v", err)
	}
	if cred.AccessToken != "at-rotated" {
		t.Fatalf("access token = %q, want rotated token", cred.AccessToken)
	}
}

func TestSweepAppliesScopeDrift(t *testing.T) {
	provider := newVerifyProvider("discord")
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{Valid: true, GrantedScopes: []string{"profile", "admin"}}, nil
	}
	fixture := newSchedulerFixture(t, provider)
	fixture.seedLink(t, "user-1", "discord", time.Hour)

	if _, err := fixture.scheduler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	record := fixture.mustGet(t, "user-1", "discord")
	if len(record.GrantedScopes) != 1 || record.GrantedScopes[0] != "profile" {
		t.Fatalf("granted scopes = %v, want [profile]", record.GrantedScopes)
	}
}

func TestSweepBacksOffUnreachableProvider(t *testing.T) {
	provider := newVerifyProvider("steam")
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{}, &core.ProviderUnavailableError{
			ProviderID: "steam",
			Cause:      errors.New("dial tcp: connection refused"),
		}
	}
	fixture := newSchedulerFixture(t, provider)
	fixture.seedLink(t, "user-1", "steam", time.Hour)
	fixture.seedLink(t, "user-2", "steam", time.Hour)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Transient != 1 {
		t.Fatalf("report = %+v, want batch abandoned after first transient failure", report)
	}
	if provider.calls() != 1 {
		t.Fatalf("verify calls = %d, want 1", provider.calls())
	}

	// provider is in backoff, second sweep must not probe it
	if _, err := fixture.scheduler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if provider.calls() != 1 {
		t.Fatalf("verify calls = %d, want still 1 during backoff", provider.calls())
	}

	// backoff expires, the provider recovers
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{Valid: true}, nil
	}
	fixture.now = fixture.now.Add(2 * time.Minute)
	report, err = fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Confirmed != 2 {
		t.Fatalf("report = %+v, want both records confirmed after recovery", report)
	}
}

func TestSweepContinuesPastHealthyProviders(t *testing.T) {
	broken := newVerifyProvider("steam")
	broken.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		return core.VerifyResult{}, &core.ProviderUnavailableError{ProviderID: "steam", Cause: errors.New("timeout")}
	}
	healthy := newVerifyProvider("discord")

	fixture := newSchedulerFixture(t, broken, healthy)
	fixture.seedLink(t, "user-1", "steam", time.Hour)
	fixture.seedLink(t, "user-1", "discord", time.Hour)

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Confirmed != 1 || report.Transient != 1 {
		t.Fatalf("report = %+v, want 1 confirmed and 1 transient", report)
	}
}

func TestSweepIgnoresLostVersionRace(t *testing.T) {
	provider := newVerifyProvider("discord")
	fixture := newSchedulerFixture(t, provider)
	seeded := fixture.seedLink(t, "user-1", "discord", time.Hour)

	// simulate an interactive write landing between ListStale and Update
	provider.verifyFn = func(context.Context, core.Credential) (core.VerifyResult, error) {
		fresh := fixture.mustGet(t, "user-1", "discord")
		fresh.LastSyncNote = "interactive update"
		if _, err := fixture.store.Update(context.Background(), fresh, fresh.Version); err != nil {
			t.Fatalf("interleaved update: %v", err)
		}
		return core.VerifyResult{Valid: true}, nil
	}

	report, err := fixture.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Conflicts != 1 {
		t.Fatalf("report = %+v, want 1 conflict", report)
	}

	record := fixture.mustGet(t, "user-1", "discord")
	if record.LastSyncNote != "interactive update" {
		t.Fatalf("sync note = %q, want the interactive write preserved", record.LastSyncNote)
	}
	if record.Version != seeded.Version+1 {
		t.Fatalf("version = %d, want exactly one successful write", record.Version)
	}
}

func TestSweepOrphansDestroysUnreferencedCredentials(t *testing.T) {
	provider := newVerifyProvider("discord")
	fixture := newSchedulerFixture(t, provider)
	linked := fixture.seedLink(t, "user-1", "discord", time.Minute)

	// credential stored but never attached to a record
	if _, err := fixture.vault.Store(context.Background(), "user-2", "discord", core.Credential{
		TokenType:   "Bearer",
		AccessToken: "at-orphan",
	}); err != nil {
		t.Fatalf("store orphan credential: %v", err)
	}

	destroyed, err := fixture.scheduler.SweepOrphans(context.Background())
	if err != nil {
		t.Fatalf("sweep orphans: %v", err)
	}
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
	if fixture.vault.count() != 1 {
		t.Fatalf("vault holds %d credentials, want 1", fixture.vault.count())
	}
	if _, err := fixture.vault.Fetch(context.Background(), linked.CredentialRef); err != nil {
		t.Fatalf("linked credential must survive orphan sweep: %v", err)
	}
}

func TestNewSchedulerRequiresDependencies(t *testing.T) {
	registry := core.NewProviderRegistry()
	store := core.NewMemoryLinkStore()
	vault := newPlainVault()

	if _, err := NewScheduler(core.ReconcileConfig{}, nil, store, vault); err == nil {
		t.Fatal("expected error for missing registry")
	}
	if _, err := NewScheduler(core.ReconcileConfig{}, registry, nil, vault); err == nil {
		t.Fatal("expected error for missing store")
	}
	if _, err := NewScheduler(core.ReconcileConfig{}, registry, store, nil); err == nil {
		t.Fatal("expected error for missing vault")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	provider := newVerifyProvider("discord")
	fixture := newSchedulerFixture(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fixture.scheduler.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
