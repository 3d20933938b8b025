// Package providers implements the provider contract for OAuth2
// authorization-code platforms. Platform packages underneath configure this
// generic provider with their endpoints and probe parsing.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamkit/go-linking/core"
)

const (
	defaultRequestTimeout    = 30 * time.Second
	maxResponseBodyBytes     = 1 << 20 // 1 MiB
	defaultTokenTTL          = time.Hour
	revokeTokenTypeHintParam = "token_type_hint"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProbeParser extracts the account identity label and granted scopes from a
// successful liveness probe response body.
type ProbeParser func(body []byte) (identityLabel string, scopes []string, err error)

type OAuth2Config struct {
	Descriptor         core.ProviderDescriptor
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	ProbeURL           string
	ProbeParser        ProbeParser
	TokenTTL           time.Duration
	RequestTimeout     time.Duration
	Now                func() time.Time
	HTTPClient         HTTPDoer
}

type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.Descriptor.ID = strings.TrimSpace(strings.ToLower(cfg.Descriptor.ID))
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.Descriptor.ID)
	}

	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.ProbeURL = strings.TrimSpace(cfg.ProbeURL)
	cfg.Descriptor.SupportedScopes = core.NormalizeScopes(cfg.Descriptor.SupportedScopes)
	cfg.Descriptor.DefaultScopes = core.NormalizeScopes(cfg.Descriptor.DefaultScopes)
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	if cfg.ProbeParser == nil {
		cfg.ProbeParser = defaultProbeParser
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.Descriptor.ID
}

func (p *OAuth2Provider) Descriptor() core.ProviderDescriptor {
	if p == nil {
		return core.ProviderDescriptor{}
	}
	descriptor := p.cfg.Descriptor
	descriptor.SupportedScopes = append([]string(nil), descriptor.SupportedScopes...)
	descriptor.DefaultScopes = append([]string(nil), descriptor.DefaultScopes...)
	return descriptor
}

func (p *OAuth2Provider) BeginAuth(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		generated, err := core.GenerateAuthState()
		if err != nil {
			return core.BeginAuthResponse{}, err
		}
		state = generated
	}
	requested := core.NormalizeScopes(req.RequestedScopes)
	if len(requested) == 0 {
		requested = append([]string(nil), p.cfg.Descriptor.DefaultScopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", p.cfg.ClientID)
	if strings.TrimSpace(req.RedirectURI) != "" {
		values.Set("redirect_uri", strings.TrimSpace(req.RedirectURI))
	}
	values.Set("scope", strings.Join(requested, " "))
	values.Set("state", state)

	authURL := p.cfg.Descriptor.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}

	return core.BeginAuthResponse{
		URL:             authURL,
		State:           state,
		RequestedScopes: requested,
	}, nil
}

func (p *OAuth2Provider) Exchange(ctx context.Context, req core.ExchangeRequest) (core.ExchangeResult, error) {
	if p == nil {
		return core.ExchangeResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.ExchangeResult{}, fmt.Errorf("providers: auth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	token, err := p.fetchToken(ctx, form)
	if err != nil {
		return core.ExchangeResult{}, err
	}

	granted := core.NormalizeScopes(parseScopeList(token.Scope))
	if len(granted) == 0 {
		granted = append([]string(nil), p.cfg.Descriptor.DefaultScopes...)
	}

	now := p.cfg.Now().UTC()
	refreshToken := strings.TrimSpace(token.RefreshToken)
	credential := core.Credential{
		TokenType:    normalizeTokenType(token.TokenType),
		AccessToken:  strings.TrimSpace(token.AccessToken),
		RefreshToken: refreshToken,
		Scopes:       append([]string(nil), granted...),
		ExpiresAt:    p.resolveExpiresAt(now, token.ExpiresIn),
		Refreshable:  refreshToken != "" && p.cfg.Descriptor.IssuesRefreshTokens,
	}

	identityLabel := ""
	if p.cfg.ProbeURL != "" {
		// identity lookup is cosmetic, a probe failure must not fail linking
		if probed, probeErr := p.probe(ctx, credential); probeErr == nil {
			identityLabel = probed.IdentityLabel
		}
	}

	return core.ExchangeResult{
		Credential:    credential,
		GrantedScopes: granted,
		IdentityLabel: identityLabel,
	}, nil
}

func (p *OAuth2Provider) Refresh(ctx context.Context, cred core.Credential) (core.ExchangeResult, error) {
	if p == nil {
		return core.ExchangeResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if !p.cfg.Descriptor.IssuesRefreshTokens {
		return core.ExchangeResult{}, fmt.Errorf("providers: provider %q does not issue refresh tokens", p.cfg.Descriptor.ID)
	}
	refreshToken := strings.TrimSpace(cred.RefreshToken)
	if refreshToken == "" {
		return core.ExchangeResult{}, fmt.Errorf("providers: refresh token is required")
	}

	granted := core.NormalizeScopes(cred.Scopes)
	if len(granted) == 0 {
		granted = append([]string(nil), p.cfg.Descriptor.DefaultScopes...)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if len(granted) > 0 {
		form.Set("scope", strings.Join(granted, " "))
	}

	token, err := p.fetchToken(ctx, form)
	if err != nil {
		return core.ExchangeResult{}, err
	}
	if refreshedScopes := core.NormalizeScopes(parseScopeList(token.Scope)); len(refreshedScopes) > 0 {
		granted = refreshedScopes
	}

	now := p.cfg.Now().UTC()
	refreshed := cred
	refreshed.TokenType = normalizeTokenType(token.TokenType)
	refreshed.AccessToken = strings.TrimSpace(token.AccessToken)
	if nextRefresh := strings.TrimSpace(token.RefreshToken); nextRefresh != "" {
		refreshed.RefreshToken = nextRefresh
	}
	refreshed.Scopes = append([]string(nil), granted...)
	refreshed.ExpiresAt = p.resolveExpiresAt(now, token.ExpiresIn)
	refreshed.Refreshable = strings.TrimSpace(refreshed.RefreshToken) != ""

	return core.ExchangeResult{
		Credential:    refreshed,
		GrantedScopes: granted,
	}, nil
}

// Revoke invalidates the remote grant at the descriptor's revocation
// endpoint. Per RFC 7009, endpoints answer 200 for unknown tokens, so a
// revoke of an already-dead grant succeeds.
func (p *OAuth2Provider) Revoke(ctx context.Context, cred core.Credential) error {
	if p == nil {
		return fmt.Errorf("providers: oauth2 provider is nil")
	}
	revokeURL := strings.TrimSpace(p.cfg.Descriptor.RevokeURL)
	if revokeURL == "" {
		return fmt.Errorf("providers: provider %q does not support remote revocation", p.cfg.Descriptor.ID)
	}

	token := strings.TrimSpace(cred.RefreshToken)
	hint := "refresh_token"
	if token == "" {
		token = strings.TrimSpace(cred.AccessToken)
		hint = "access_token"
	}
	if token == "" {
		return fmt.Errorf("providers: credential has no token to revoke")
	}

	values := url.Values{}
	values.Set("token", token)
	values.Set(revokeTokenTypeHintParam, hint)
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		revokeURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return &core.ProviderUnavailableError{ProviderID: p.cfg.Descriptor.ID, Cause: err}
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBodyBytes))

	if response.StatusCode >= http.StatusInternalServerError {
		return &core.ProviderUnavailableError{
			ProviderID: p.cfg.Descriptor.ID,
			Cause:      fmt.Errorf("revocation endpoint returned %d", response.StatusCode),
		}
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("providers: revocation endpoint rejected request (%d)", response.StatusCode)
	}
	return nil
}

// Verify probes the provider for grant liveness. A definitive 401/403 answer
// reads as revoked; transport failures and 5xx answers surface as
// ProviderUnavailableError so the caller can retry later. Expired refreshable
// credentials are refreshed first and the new credential is returned.
func (p *OAuth2Provider) Verify(ctx context.Context, cred core.Credential) (core.VerifyResult, error) {
	if p == nil {
		return core.VerifyResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}

	var refreshed *core.Credential
	if cred.Expired(p.cfg.Now()) {
		if !cred.Refreshable {
			return core.VerifyResult{Valid: false}, nil
		}
		result, err := p.Refresh(ctx, cred)
		if err != nil {
			return core.VerifyResult{}, err
		}
		cred = result.Credential
		refreshed = &result.Credential
	}

	if p.cfg.ProbeURL == "" {
		// no probe endpoint, an unexpired credential is assumed live
		result := core.VerifyResult{Valid: true, GrantedScopes: append([]string(nil), cred.Scopes...)}
		result.Refreshed = refreshed
		return result, nil
	}

	result, err := p.probe(ctx, cred)
	if err != nil {
		return core.VerifyResult{}, err
	}
	result.Refreshed = refreshed
	return result, nil
}

func (p *OAuth2Provider) probe(ctx context.Context, cred core.Credential) (core.VerifyResult, error) {
	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, p.cfg.ProbeURL, nil)
	if err != nil {
		return core.VerifyResult{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cred.AccessToken))

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return core.VerifyResult{}, &core.ProviderUnavailableError{ProviderID: p.cfg.Descriptor.ID, Cause: err}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if readErr != nil {
		return core.VerifyResult{}, &core.ProviderUnavailableError{ProviderID: p.cfg.Descriptor.ID, Cause: readErr}
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return core.VerifyResult{Valid: false}, nil
	case response.StatusCode >= http.StatusInternalServerError || response.StatusCode == http.StatusTooManyRequests:
		return core.VerifyResult{}, &core.ProviderUnavailableError{
			ProviderID: p.cfg.Descriptor.ID,
			Cause:      fmt.Errorf("probe endpoint returned %d", response.StatusCode),
		}
	case response.StatusCode >= http.StatusBadRequest:
		return core.VerifyResult{}, fmt.Errorf("providers: probe endpoint rejected request (%d)", response.StatusCode)
	}

	identityLabel, scopes, parseErr := p.cfg.ProbeParser(body)
	if parseErr != nil {
		return core.VerifyResult{}, &core.ProviderUnavailableError{ProviderID: p.cfg.Descriptor.ID, Cause: parseErr}
	}
	granted := core.NormalizeScopes(scopes)
	if len(granted) == 0 {
		granted = append([]string(nil), cred.Scopes...)
	}
	return core.VerifyResult{
		Valid:         true,
		GrantedScopes: granted,
		IdentityLabel: identityLabel,
	}, nil
}

func (p *OAuth2Provider) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	if p.httpClient == nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: oauth2 http client is not configured")
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.Descriptor.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, &core.ProviderUnavailableError{ProviderID: p.cfg.Descriptor.ID, Cause: err}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token response exceeds %d bytes", maxResponseBodyBytes)
	}

	if response.StatusCode >= http.StatusInternalServerError {
		return tokenEndpointPayload{}, &core.ProviderUnavailableError{
			ProviderID: p.cfg.Descriptor.ID,
			Cause:      fmt.Errorf("token endpoint returned %d", response.StatusCode),
		}
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func (p *OAuth2Provider) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.RequestTimeout)
	}
	return ctx, func() {}
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func (p *OAuth2Provider) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := p.cfg.TokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func defaultProbeParser(body []byte) (string, []string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", nil, err
	}
	for _, key := range []string{"display_name", "username", "login", "name", "title"} {
		if label := readAnyString(decoded[key]); label != "" {
			return label, nil, nil
		}
	}
	return "", nil, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.Provider = (*OAuth2Provider)(nil)
