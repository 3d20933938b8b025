// Package reconcile re-validates linked accounts against their providers and
// repairs drift: provider-side revocation, token expiry, scope changes, and
// credentials orphaned by interrupted flows.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/streamkit/go-linking/core"
)

type Scheduler struct {
	cfg      core.ReconcileConfig
	registry core.Registry
	store    core.LinkStore
	vault    core.CredentialVault
	logger   core.Logger
	metrics  core.MetricsRecorder
	backoff  Backoff
	nowFn    func() time.Time

	mu       sync.Mutex
	failures map[string]int
	resumeAt map[string]time.Time
}

type Option func(*Scheduler)

func WithLogger(logger core.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *Scheduler) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

func WithBackoff(backoff Backoff) Option {
	return func(s *Scheduler) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewScheduler(
	cfg core.ReconcileConfig,
	registry core.Registry,
	store core.LinkStore,
	vault core.CredentialVault,
	opts ...Option,
) (*Scheduler, error) {
	if registry == nil {
		return nil, fmt.Errorf("reconcile: registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("reconcile: link store is required")
	}
	if vault == nil {
		return nil, fmt.Errorf("reconcile: credential vault is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.FreshnessThreshold <= 0 {
		cfg.FreshnessThreshold = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.AuthorizingTimeout <= 0 {
		cfg.AuthorizingTimeout = core.DefaultPendingAuthTTL
	}

	scheduler := &Scheduler{
		cfg:      cfg,
		registry: registry,
		store:    store,
		vault:    vault,
		logger:   glog.Ensure(nil),
		metrics:  core.NopMetricsRecorder{},
		backoff: ExponentialBackoff{
			Initial: cfg.BackoffInitial,
			Max:     cfg.BackoffMax,
		},
		nowFn:    func() time.Time { return time.Now().UTC() },
		failures: map[string]int{},
		resumeAt: map[string]time.Time{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(scheduler)
	}
	return scheduler, nil
}

// Report is the outcome of one sweep pass.
type Report struct {
	Checked   int
	Confirmed int
	Rotated   int
	Revoked   int
	Transient int
	Conflicts int
	Abandoned int
	Orphans   int
}

// Run loops Sweep on the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("reconcile: scheduler is nil")
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.logger.Error("reconcile sweep failed", "error", err)
				continue
			}
			s.logger.Info("reconcile sweep finished",
				"checked", report.Checked,
				"confirmed", report.Confirmed,
				"rotated", report.Rotated,
				"revoked", report.Revoked,
				"transient", report.Transient,
				"conflicts", report.Conflicts,
				"abandoned", report.Abandoned,
				"orphans", report.Orphans,
			)
		}
	}
}

// Sweep performs one reconciliation pass: per provider, re-verify stale
// linked records, then destroy orphaned vault entries.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	if s == nil {
		return Report{}, fmt.Errorf("reconcile: scheduler is nil")
	}
	report := Report{}
	now := s.nowFn()
	verifiedBefore := now.Add(-s.cfg.FreshnessThreshold)

	for _, provider := range s.registry.List() {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		// abandonment needs no provider call, so it runs even during backoff
		abandoned, err := s.abandonExpiredAuthorizations(ctx, provider.ID(), now)
		if err != nil {
			return report, err
		}
		report.Abandoned += abandoned

		if s.inBackoff(provider.ID(), now) {
			continue
		}

		records, err := s.store.ListStale(ctx, provider.ID(), core.LinkStateLinked, verifiedBefore, s.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("reconcile: list stale records for %q: %w", provider.ID(), err)
		}

		providerHealthy := true
		for _, record := range records {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Checked++
			outcome := s.reconcileRecord(ctx, provider, record)
			switch outcome {
			case outcomeConfirmed:
				report.Confirmed++
			case outcomeRotated:
				report.Rotated++
			case outcomeRevoked:
				report.Revoked++
			case outcomeConflict:
				report.Conflicts++
			case outcomeTransient:
				report.Transient++
				providerHealthy = false
			}
			if !providerHealthy {
				// unreachable provider, the rest of the batch waits for backoff
				break
			}
		}

		if providerHealthy {
			s.clearBackoff(provider.ID())
		} else {
			s.recordFailure(provider.ID(), now)
		}
	}

	orphans, err := s.SweepOrphans(ctx)
	if err != nil {
		return report, err
	}
	report.Orphans = orphans
	return report, nil
}

// abandonExpiredAuthorizations walks authorizing records whose callback window
// has closed and moves them to unlinked. The nonce TTL already expired their
// pending authorizations; this retires the record itself.
func (s *Scheduler) abandonExpiredAuthorizations(ctx context.Context, providerID string, now time.Time) (int, error) {
	records, err := s.store.ListStale(ctx, providerID, core.LinkStateAuthorizing, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list authorizing records for %q: %w", providerID, err)
	}

	deadline := now.Add(-s.cfg.AuthorizingTimeout)
	abandoned := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return abandoned, ctx.Err()
		}
		if record.UpdatedAt.After(deadline) {
			// the callback window is still open
			continue
		}

		fields := []any{
			"provider_id", record.ProviderID,
			"user_id", record.UserID,
		}
		expectedVersion := record.Version
		if transitionErr := record.TransitionTo(core.LinkStateUnlinked, "authorization expired without callback", now); transitionErr != nil {
			s.logger.Error("abandon authorization transition failed", append(fields, "error", transitionErr.Error())...)
			continue
		}
		if _, updateErr := s.store.Update(ctx, record, expectedVersion); updateErr != nil {
			if errors.Is(updateErr, core.ErrConflictingUpdate) {
				// an interactive writer finished or restarted the flow
				s.count(ctx, "conflict", record.ProviderID)
				continue
			}
			s.logger.Warn("abandon authorization update failed", append(fields, "error", updateErr.Error())...)
			continue
		}
		abandoned++
		s.count(ctx, "abandoned", record.ProviderID)
	}
	return abandoned, nil
}

type outcome int

const (
	outcomeConfirmed outcome = iota
	outcomeRotated
	outcomeRevoked
	outcomeConflict
	outcomeTransient
)

func (s *Scheduler) reconcileRecord(ctx context.Context, provider core.Provider, record core.LinkRecord) outcome {
	fields := []any{
		"provider_id", record.ProviderID,
		"user_id", record.UserID,
	}

	cred, err := s.vault.Fetch(ctx, record.CredentialRef)
	if err != nil {
		s.logger.Warn("reconcile credential fetch failed", append(fields, "error", err.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}

	result, err := provider.Verify(ctx, cred)
	if err != nil {
		var unavailable *core.ProviderUnavailableError
		if errors.As(err, &unavailable) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("reconcile probe unavailable", append(fields, "error", err.Error())...)
			s.count(ctx, "transient", record.ProviderID)
			return outcomeTransient
		}
		s.logger.Error("reconcile probe failed", append(fields, "error", err.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}

	if !result.Valid {
		return s.applyExternalRevocation(ctx, record, fields)
	}

	rotated := false
	if result.Refreshed != nil {
		if _, rotateErr := s.vault.Rotate(ctx, record.CredentialRef, *result.Refreshed); rotateErr != nil {
			s.logger.Warn("reconcile credential rotation failed", append(fields, "error", rotateErr.Error())...)
			s.count(ctx, "transient", record.ProviderID)
			return outcomeTransient
		}
		rotated = true
	}

	now := s.nowFn()
	expectedVersion := record.Version
	record.LastVerifiedAt = &now
	record.UpdatedAt = now
	if granted := core.IntersectScopes(provider.Descriptor().SupportedScopes, result.GrantedScopes); len(granted) > 0 {
		record.GrantedScopes = granted
	}
	if label := strings.TrimSpace(result.IdentityLabel); label != "" {
		record.LastSyncNote = label
	}

	if _, updateErr := s.store.Update(ctx, record, expectedVersion); updateErr != nil {
		if errors.Is(updateErr, core.ErrConflictingUpdate) {
			// an interactive writer won the race, their view is fresher
			s.count(ctx, "conflict", record.ProviderID)
			return outcomeConflict
		}
		s.logger.Warn("reconcile record update failed", append(fields, "error", updateErr.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}

	if rotated {
		s.count(ctx, "rotated", record.ProviderID)
		return outcomeRotated
	}
	s.count(ctx, "confirmed", record.ProviderID)
	return outcomeConfirmed
}

func (s *Scheduler) applyExternalRevocation(ctx context.Context, record core.LinkRecord, fields []any) outcome {
	if destroyErr := s.vault.Destroy(ctx, record.CredentialRef); destroyErr != nil {
		s.logger.Warn("reconcile credential destroy failed", append(fields, "error", destroyErr.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}

	expectedVersion := record.Version
	if transitionErr := record.TransitionTo(core.LinkStateUnlinked, "provider reported revocation", s.nowFn()); transitionErr != nil {
		s.logger.Error("reconcile transition failed", append(fields, "error", transitionErr.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}
	if _, updateErr := s.store.Update(ctx, record, expectedVersion); updateErr != nil {
		if errors.Is(updateErr, core.ErrConflictingUpdate) {
			s.count(ctx, "conflict", record.ProviderID)
			return outcomeConflict
		}
		s.logger.Warn("reconcile record update failed", append(fields, "error", updateErr.Error())...)
		s.count(ctx, "transient", record.ProviderID)
		return outcomeTransient
	}

	s.logger.Info("link revoked by provider", fields...)
	s.count(ctx, "revoked", record.ProviderID)
	return outcomeRevoked
}

// SweepOrphans destroys vault entries no link record references. Orphans
// appear when a flow is interrupted between storing a credential and
// persisting the record that points at it.
func (s *Scheduler) SweepOrphans(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("reconcile: scheduler is nil")
	}
	vaultRefs, err := s.vault.References(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list vault references: %w", err)
	}
	activeRefs, err := s.store.ActiveCredentialRefs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list active references: %w", err)
	}

	active := make(map[string]struct{}, len(activeRefs))
	for _, reference := range activeRefs {
		active[reference] = struct{}{}
	}

	destroyed := 0
	for _, reference := range vaultRefs {
		if _, ok := active[reference]; ok {
			continue
		}
		if destroyErr := s.vault.Destroy(ctx, reference); destroyErr != nil {
			s.logger.Warn("orphan credential destroy failed", "credential_ref", reference, "error", destroyErr.Error())
			continue
		}
		destroyed++
	}
	if destroyed > 0 {
		s.metrics.IncCounter(ctx, "linking.reconcile.orphans_destroyed", int64(destroyed), map[string]string{})
	}
	return destroyed, nil
}

func (s *Scheduler) inBackoff(providerID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	resumeAt, ok := s.resumeAt[providerID]
	return ok && now.Before(resumeAt)
}

func (s *Scheduler) recordFailure(providerID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[providerID]++
	delay := s.backoff.NextDelay(s.failures[providerID])
	s.resumeAt[providerID] = now.Add(delay)
	s.logger.Warn("provider backing off",
		"provider_id", providerID,
		"failures", s.failures[providerID],
		"resume_in", delay.String(),
	)
}

func (s *Scheduler) clearBackoff(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, providerID)
	delete(s.resumeAt, providerID)
}

func (s *Scheduler) count(ctx context.Context, result string, providerID string) {
	s.metrics.IncCounter(ctx, "linking.reconcile.records.total", 1, map[string]string{
		"result":      result,
		"provider_id": providerID,
	})
}
