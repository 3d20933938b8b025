package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	registry         Registry
	linkStore        LinkStore
	vault            CredentialVault
	pendingAuthStore PendingAuthStore
	nowFn            func() time.Time
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Registry         Registry
	LinkStore        LinkStore
	Vault            CredentialVault
	PendingAuthStore PendingAuthStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("linking", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("linking"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.linkStore == nil {
		builder.linkStore = NewMemoryLinkStore()
	}
	if builder.pendingAuthStore == nil {
		builder.pendingAuthStore = NewMemoryPendingAuthStore(finalConfig.PendingAuthTTL)
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		registry:         builder.registry,
		linkStore:        builder.linkStore,
		vault:            builder.vault,
		pendingAuthStore: builder.pendingAuthStore,
		nowFn:            builder.nowFn,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Registry:         s.registry,
		LinkStore:        s.linkStore,
		Vault:            s.vault,
		PendingAuthStore: s.pendingAuthStore,
	}
}

func (s *Service) InitiateConnect(ctx context.Context, userID string, providerID string) (intent AuthorizationIntent, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": providerID,
		"user_id":     userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "initiate_connect", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return AuthorizationIntent{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return AuthorizationIntent{}, err
	}
	providerID = provider.ID()
	descriptor := provider.Descriptor()

	record, found, getErr := s.linkStore.Get(ctx, userID, providerID)
	if getErr != nil {
		err = s.mapError(getErr)
		return AuthorizationIntent{}, err
	}
	if found {
		switch record.State {
		case LinkStateLinked:
			err = s.errorFactory(
				fmt.Sprintf("account is already linked to provider %q", providerID),
				goerrors.CategoryConflict,
			).WithTextCode(LinkingErrorAlreadyLinked).
				WithMetadata(map[string]any{"provider_id": providerID, "user_id": userID})
			return AuthorizationIntent{}, err
		case LinkStateRevoking:
			record, err = s.finishLocalRevocation(ctx, record)
			if err != nil {
				return AuthorizationIntent{}, err
			}
		}
	}

	state, genErr := GenerateAuthState()
	if genErr != nil {
		err = s.mapError(genErr)
		return AuthorizationIntent{}, err
	}
	requestedScopes := NormalizeScopes(descriptor.DefaultScopes)

	response, beginErr := provider.BeginAuth(ctx, BeginAuthRequest{
		UserID:          userID,
		RedirectURI:     s.config.CallbackURL,
		State:           state,
		RequestedScopes: requestedScopes,
	})
	if beginErr != nil {
		err = s.mapError(beginErr)
		return AuthorizationIntent{}, err
	}
	if strings.TrimSpace(response.State) == "" {
		response.State = state
	}
	if len(response.RequestedScopes) > 0 {
		requestedScopes = NormalizeScopes(response.RequestedScopes)
	}

	now := s.now()
	expiresAt := now.Add(s.pendingAuthTTL())
	if saveErr := s.pendingAuthStore.Save(ctx, PendingAuthorization{
		State:           response.State,
		UserID:          userID,
		ProviderID:      providerID,
		RedirectURI:     s.config.CallbackURL,
		RequestedScopes: requestedScopes,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
	}); saveErr != nil {
		err = s.mapError(saveErr)
		return AuthorizationIntent{}, err
	}

	if !found {
		record = LinkRecord{
			UserID:     userID,
			ProviderID: providerID,
			State:      LinkStateAuthorizing,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, createErr := s.linkStore.Create(ctx, record); createErr != nil {
			err = s.mapError(createErr)
			return AuthorizationIntent{}, err
		}
	} else if record.State != LinkStateAuthorizing {
		expectedVersion := record.Version
		if transitionErr := record.TransitionTo(LinkStateAuthorizing, "", now); transitionErr != nil {
			err = s.mapError(transitionErr)
			return AuthorizationIntent{}, err
		}
		if _, updateErr := s.linkStore.Update(ctx, record, expectedVersion); updateErr != nil {
			err = s.mapError(updateErr)
			return AuthorizationIntent{}, err
		}
	}

	return AuthorizationIntent{
		URL:             response.URL,
		State:           response.State,
		RequestedScopes: cloneScopes(requestedScopes),
		ExpiresAt:       expiresAt,
	}, nil
}

func (s *Service) CompleteConnect(ctx context.Context, userID string, providerID string, params CallbackParams) (status LinkStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": providerID,
		"user_id":     userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_connect", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return LinkStatus{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return LinkStatus{}, err
	}
	providerID = provider.ID()
	descriptor := provider.Descriptor()

	pending, consumeErr := s.pendingAuthStore.Consume(ctx, params.State)
	if consumeErr != nil {
		s.abandonAuthorizationForPair(ctx, userID, providerID, "invalid or expired authorization state")
		err = s.mapError(consumeErr)
		return LinkStatus{}, err
	}
	if pending.UserID != userID || pending.ProviderID != providerID {
		err = s.mapError(fmt.Errorf("core: pending authorization state mismatch"))
		return LinkStatus{}, err
	}

	record, found, getErr := s.linkStore.Get(ctx, userID, providerID)
	if getErr != nil {
		err = s.mapError(getErr)
		return LinkStatus{}, err
	}
	if !found || record.State != LinkStateAuthorizing {
		err = s.mapError(fmt.Errorf("core: no authorization in progress for provider %q", providerID))
		return LinkStatus{}, err
	}

	now := s.now()
	if strings.TrimSpace(params.ErrorCode) != "" {
		s.abandonAuthorization(ctx, record, strings.TrimSpace(params.ErrorCode))
		err = s.mapError(&ProviderDeniedError{
			ProviderID:  providerID,
			Code:        strings.TrimSpace(params.ErrorCode),
			Description: strings.TrimSpace(params.ErrorDescription),
		})
		return LinkStatus{}, err
	}
	if strings.TrimSpace(params.Code) == "" {
		s.abandonAuthorization(ctx, record, "missing authorization code")
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return LinkStatus{}, err
	}

	result, exchangeErr := provider.Exchange(ctx, ExchangeRequest{
		Code:        strings.TrimSpace(params.Code),
		RedirectURI: pending.RedirectURI,
	})
	if exchangeErr != nil {
		s.abandonAuthorization(ctx, record, exchangeErr.Error())
		err = s.mapError(exchangeErr)
		return LinkStatus{}, err
	}

	granted := IntersectScopes(descriptor.SupportedScopes, result.GrantedScopes)
	if len(granted) == 0 {
		granted = cloneScopes(pending.RequestedScopes)
	}

	reference, storeErr := s.vaultStore(ctx, userID, providerID, result.Credential)
	if storeErr != nil {
		s.abandonAuthorization(ctx, record, storeErr.Error())
		err = s.mapError(storeErr)
		return LinkStatus{}, err
	}

	expectedVersion := record.Version
	if transitionErr := record.TransitionTo(LinkStateLinked, "", now); transitionErr != nil {
		err = s.mapError(transitionErr)
		return LinkStatus{}, err
	}
	record.GrantedScopes = granted
	record.CredentialRef = reference
	record.LinkedAt = &now
	record.LastVerifiedAt = &now
	record.LastSyncNote = strings.TrimSpace(result.IdentityLabel)

	updated, updateErr := s.linkStore.Update(ctx, record, expectedVersion)
	if updateErr != nil {
		s.destroyCredentialQuietly(ctx, reference, fields)
		err = s.mapError(updateErr)
		return LinkStatus{}, err
	}

	return s.statusFromRecord(descriptor, updated), nil
}

func (s *Service) Disconnect(ctx context.Context, userID string, providerID string) (status LinkStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": providerID,
		"user_id":     userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return LinkStatus{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return LinkStatus{}, err
	}
	providerID = provider.ID()
	descriptor := provider.Descriptor()

	record, found, getErr := s.linkStore.Get(ctx, userID, providerID)
	if getErr != nil {
		err = s.mapError(getErr)
		return LinkStatus{}, err
	}
	if !found || record.State == LinkStateUnlinked {
		err = s.errorFactory(
			fmt.Sprintf("account is not linked to provider %q", providerID),
			goerrors.CategoryConflict,
		).WithTextCode(LinkingErrorNotLinked).
			WithMetadata(map[string]any{"provider_id": providerID, "user_id": userID})
		return LinkStatus{}, err
	}

	now := s.now()
	switch record.State {
	case LinkStateAuthorizing:
		expectedVersion := record.Version
		if transitionErr := record.TransitionTo(LinkStateUnlinked, "authorization abandoned", now); transitionErr != nil {
			err = s.mapError(transitionErr)
			return LinkStatus{}, err
		}
		updated, updateErr := s.linkStore.Update(ctx, record, expectedVersion)
		if updateErr != nil {
			err = s.mapError(updateErr)
			return LinkStatus{}, err
		}
		return s.statusFromRecord(descriptor, updated), nil
	case LinkStateRevoking:
		updated, finishErr := s.finishLocalRevocation(ctx, record)
		if finishErr != nil {
			err = finishErr
			return LinkStatus{}, err
		}
		return s.statusFromRecord(descriptor, updated), nil
	}

	reference := record.CredentialRef
	expectedVersion := record.Version
	if transitionErr := record.TransitionTo(LinkStateRevoking, "", now); transitionErr != nil {
		err = s.mapError(transitionErr)
		return LinkStatus{}, err
	}
	record, err = s.updateMapped(ctx, record, expectedVersion)
	if err != nil {
		return LinkStatus{}, err
	}

	if descriptor.SupportsRevocation() && strings.TrimSpace(reference) != "" {
		s.revokeRemoteQuietly(ctx, provider, reference, fields)
	}
	if strings.TrimSpace(reference) != "" {
		if destroyErr := s.vaultDestroy(ctx, reference); destroyErr != nil {
			err = s.mapError(destroyErr)
			return LinkStatus{}, err
		}
	}

	expectedVersion = record.Version
	if transitionErr := record.TransitionTo(LinkStateUnlinked, "", s.now()); transitionErr != nil {
		err = s.mapError(transitionErr)
		return LinkStatus{}, err
	}
	record, err = s.updateMapped(ctx, record, expectedVersion)
	if err != nil {
		return LinkStatus{}, err
	}

	return s.statusFromRecord(descriptor, record), nil
}

func (s *Service) GetLinkStatus(ctx context.Context, userID string, providerID string) (status LinkStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": providerID,
		"user_id":     userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_link_status", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return LinkStatus{}, err
	}
	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return LinkStatus{}, err
	}
	descriptor := provider.Descriptor()

	record, found, getErr := s.linkStore.Get(ctx, userID, provider.ID())
	if getErr != nil {
		err = s.mapError(getErr)
		return LinkStatus{}, err
	}
	if !found {
		return s.unlinkedStatus(userID, descriptor), nil
	}
	return s.statusFromRecord(descriptor, record), nil
}

func (s *Service) ListLinkStatuses(ctx context.Context, userID string) (statuses []LinkStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_link_statuses", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return nil, err
	}
	if s == nil || s.registry == nil {
		err = s.mapError(fmt.Errorf("core: registry unavailable"))
		return nil, err
	}

	records, listErr := s.linkStore.ListByUser(ctx, userID)
	if listErr != nil {
		err = s.mapError(listErr)
		return nil, err
	}
	byProvider := make(map[string]LinkRecord, len(records))
	for _, record := range records {
		byProvider[record.ProviderID] = record
	}

	providers := s.registry.List()
	statuses = make([]LinkStatus, 0, len(providers))
	for _, provider := range providers {
		descriptor := provider.Descriptor()
		record, ok := byProvider[provider.ID()]
		if !ok {
			statuses = append(statuses, s.unlinkedStatus(userID, descriptor))
			continue
		}
		statuses = append(statuses, s.statusFromRecord(descriptor, record))
	}
	return statuses, nil
}

func (s *Service) finishLocalRevocation(ctx context.Context, record LinkRecord) (LinkRecord, error) {
	reference := strings.TrimSpace(record.CredentialRef)
	if reference != "" {
		if destroyErr := s.vaultDestroy(ctx, reference); destroyErr != nil {
			return LinkRecord{}, s.mapError(destroyErr)
		}
	}
	expectedVersion := record.Version
	if transitionErr := record.TransitionTo(LinkStateUnlinked, "", s.now()); transitionErr != nil {
		return LinkRecord{}, s.mapError(transitionErr)
	}
	return s.updateMapped(ctx, record, expectedVersion)
}

// abandonAuthorization moves an authorizing record back to unlinked after a
// failed callback. The nonce is already consumed, so the user must start a new
// flow; persistence failures here are logged and swallowed.
// abandonAuthorizationForPair retires an in-flight authorizing record whose
// callback cannot be honored. Records in any other state are left alone.
func (s *Service) abandonAuthorizationForPair(ctx context.Context, userID string, providerID string, reason string) {
	record, found, getErr := s.linkStore.Get(ctx, userID, providerID)
	if getErr != nil {
		s.logWarn(ctx, "abandon authorization lookup failed", map[string]any{
			"provider_id": providerID,
			"user_id":     userID,
			"error":       getErr.Error(),
		})
		return
	}
	if !found || record.State != LinkStateAuthorizing {
		return
	}
	s.abandonAuthorization(ctx, record, reason)
}

func (s *Service) abandonAuthorization(ctx context.Context, record LinkRecord, reason string) {
	expectedVersion := record.Version
	if transitionErr := record.TransitionTo(LinkStateUnlinked, reason, s.now()); transitionErr != nil {
		s.logWarn(ctx, "abandon authorization transition failed", map[string]any{
			"provider_id": record.ProviderID,
			"user_id":     record.UserID,
			"error":       transitionErr.Error(),
		})
		return
	}
	if _, updateErr := s.linkStore.Update(ctx, record, expectedVersion); updateErr != nil {
		s.logWarn(ctx, "abandon authorization update failed", map[string]any{
			"provider_id": record.ProviderID,
			"user_id":     record.UserID,
			"error":       updateErr.Error(),
		})
	}
}

func (s *Service) revokeRemoteQuietly(ctx context.Context, provider Provider, reference string, fields map[string]any) {
	cred, fetchErr := s.vault.Fetch(ctx, reference)
	if fetchErr != nil {
		s.logWarn(ctx, "remote revocation skipped, credential fetch failed", mergeFields(fields, map[string]any{
			"error": fetchErr.Error(),
		}))
		return
	}
	timeout := s.config.RemoteRevokeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	revokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if revokeErr := provider.Revoke(revokeCtx, cred); revokeErr != nil {
		s.logWarn(ctx, "remote revocation failed, continuing local revocation", mergeFields(fields, map[string]any{
			"error": revokeErr.Error(),
		}))
	}
}

func (s *Service) destroyCredentialQuietly(ctx context.Context, reference string, fields map[string]any) {
	if strings.TrimSpace(reference) == "" {
		return
	}
	if destroyErr := s.vaultDestroy(ctx, reference); destroyErr != nil {
		s.logWarn(ctx, "credential cleanup failed", mergeFields(fields, map[string]any{
			"error":          destroyErr.Error(),
			"credential_ref": reference,
		}))
	}
}

func (s *Service) updateMapped(ctx context.Context, record LinkRecord, expectedVersion int) (LinkRecord, error) {
	updated, updateErr := s.linkStore.Update(ctx, record, expectedVersion)
	if updateErr != nil {
		return LinkRecord{}, s.mapError(updateErr)
	}
	return updated, nil
}

func (s *Service) vaultStore(ctx context.Context, userID string, providerID string, cred Credential) (string, error) {
	if s == nil || s.vault == nil {
		return "", fmt.Errorf("core: credential vault is required")
	}
	return s.vault.Store(ctx, userID, providerID, cred)
}

func (s *Service) vaultDestroy(ctx context.Context, reference string) error {
	if s == nil || s.vault == nil {
		return fmt.Errorf("core: credential vault is required")
	}
	return s.vault.Destroy(ctx, reference)
}

func (s *Service) statusFromRecord(descriptor ProviderDescriptor, record LinkRecord) LinkStatus {
	status := LinkStatus{
		UserID:         record.UserID,
		ProviderID:     record.ProviderID,
		ProviderName:   descriptor.DisplayName,
		Description:    descriptor.Description,
		Connected:      record.State == LinkStateLinked,
		State:          record.State,
		Scopes:         cloneScopes(record.GrantedScopes),
		LinkedAt:       cloneTimePointer(record.LinkedAt),
		LastVerifiedAt: cloneTimePointer(record.LastVerifiedAt),
		SyncNote:       record.LastSyncNote,
	}
	status.DisplaySyncNote = s.displaySyncNote(status)
	return status
}

func (s *Service) unlinkedStatus(userID string, descriptor ProviderDescriptor) LinkStatus {
	return LinkStatus{
		UserID:       userID,
		ProviderID:   descriptor.ID,
		ProviderName: descriptor.DisplayName,
		Description:  descriptor.Description,
		Connected:    false,
		State:        LinkStateUnlinked,
		Scopes:       []string{},
	}
}

func (s *Service) displaySyncNote(status LinkStatus) string {
	if !status.Connected || status.LinkedAt == nil {
		return ""
	}
	elapsed := humanizeSince(*status.LinkedAt, s.now())
	if strings.TrimSpace(status.SyncNote) != "" {
		return fmt.Sprintf("Connected to %s %s", strings.TrimSpace(status.SyncNote), elapsed)
	}
	return "Connected " + elapsed
}

func humanizeSince(from time.Time, now time.Time) string {
	elapsed := now.Sub(from)
	if elapsed < time.Minute {
		return "just now"
	}
	if elapsed < time.Hour {
		minutes := int(elapsed.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	if elapsed < 24*time.Hour {
		hours := int(elapsed.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(elapsed.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

func (s *Service) resolveProvider(providerID string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	providerID = strings.TrimSpace(providerID)
	provider, ok := s.registry.Get(providerID)
	if ok {
		return provider, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("provider %q is not registered", providerID),
		goerrors.CategoryNotFound,
	).WithTextCode(LinkingErrorProviderNotFound)
	return nil, wrapped.WithMetadata(map[string]any{"provider_id": providerID})
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn().UTC()
}

func (s *Service) pendingAuthTTL() time.Duration {
	if s != nil && s.config.PendingAuthTTL > 0 {
		return s.config.PendingAuthTTL
	}
	return DefaultPendingAuthTTL
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	merged := cloneFields(base)
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

var _ LinkingService = (*Service)(nil)
