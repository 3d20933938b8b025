package discord

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamkit/go-linking/core"
	"github.com/streamkit/go-linking/providers"
)

const (
	ProviderID = "discord"
	AuthURL    = "https://discord.com/oauth2/authorize"
	TokenURL   = "https://discord.com/api/oauth2/token"
	RevokeURL  = "https://discord.com/api/oauth2/token/revoke"
	ProbeURL   = "https://discord.com/api/users/@me"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	ProbeURL     string
	TokenTTL     time.Duration
	HTTPClient   providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		AuthURL:   AuthURL,
		TokenURL:  TokenURL,
		RevokeURL: RevokeURL,
		ProbeURL:  ProbeURL,
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
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaults.RevokeURL
	}
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = defaults.ProbeURL
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		Descriptor: core.ProviderDescriptor{
			ID:                  ProviderID,
			DisplayName:         "Discord",
			Description:         "Join community servers and chat with followers",
			AuthURL:             cfg.AuthURL,
			TokenURL:            cfg.TokenURL,
			RevokeURL:           cfg.RevokeURL,
			SupportedScopes:     []string{"identify", "guilds"},
			DefaultScopes:       []string{"identify", "guilds"},
			IssuesRefreshTokens: true,
		},
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		ProbeURL:           cfg.ProbeURL,
		ProbeParser:        parseUserProbe,
		TokenTTL:           cfg.TokenTTL,
		HTTPClient:         cfg.HTTPClient,
	})
}

// parseUserProbe reads the /users/@me payload. Discord shows accounts as
// username#discriminator, with "0" marking migrated discriminator-less names.
func parseUserProbe(body []byte) (string, []string, error) {
	var payload struct {
		Username      string `json:"username"`
		GlobalName    string `json:"global_name"`
		Discriminator string `json:"discriminator"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("discord: decode user probe: %w", err)
	}
	if label := strings.TrimSpace(payload.GlobalName); label != "" {
		return label, nil, nil
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" {
		return "", nil, nil
	}
	discriminator := strings.TrimSpace(payload.Discriminator)
	if discriminator != "" && discriminator != "0" {
		return username + "#" + discriminator, nil, nil
	}
	return username, nil, nil
}
