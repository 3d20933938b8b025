package steam

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamkit/go-linking/core"
	"github.com/streamkit/go-linking/providers"
)

// Steam issues long-lived grants with no refresh tokens and no remote
// revocation endpoint; disconnecting destroys the local credential only.
const (
	ProviderID = "steam"
	AuthURL    = "https://steamcommunity.com/oauth/login"
	TokenURL   = "https://api.steampowered.com/ISteamUserOAuth/GetTokenDetails/v1"
	ProbeURL   = "https://api.steampowered.com/ISteamUserOAuth/GetUserSummaries/v1"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProbeURL     string
	TokenTTL     time.Duration
	HTTPClient   providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		AuthURL:  AuthURL,
		TokenURL: TokenURL,
		ProbeURL: ProbeURL,
		TokenTTL: 30 * 24 * time.Hour,
	}
}

func New(cfg Config) (core.Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = defaults.ProbeURL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		Descriptor: core.ProviderDescriptor{
			ID:              ProviderID,
			DisplayName:     "Steam",
			Description:     "Share visual content across platforms",
			AuthURL:         cfg.AuthURL,
			TokenURL:        cfg.TokenURL,
			SupportedScopes: []string{"profile"},
			DefaultScopes:   []string{"profile"},
		},
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		ProbeURL:     cfg.ProbeURL,
		ProbeParser:  parsePlayerProbe,
		TokenTTL:     cfg.TokenTTL,
		HTTPClient:   cfg.HTTPClient,
	})
}

func parsePlayerProbe(body []byte) (string, []string, error) {
	var payload struct {
		Players []struct {
			PersonaName string `json:"personaname"`
		} `json:"players"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("steam: decode player probe: %w", err)
	}
	if len(payload.Players) == 0 {
		return "", nil, nil
	}
	return strings.TrimSpace(payload.Players[0].PersonaName), nil, nil
}
