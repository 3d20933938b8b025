package youtube

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamkit/go-linking/core"
	"github.com/streamkit/go-linking/providers"
)

const (
	ProviderID = "youtube"
	AuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL   = "https://oauth2.googleapis.com/token"
	RevokeURL  = "https://oauth2.googleapis.com/revoke"
	ProbeURL   = "https://www.googleapis.com/youtube/v3/channels?part=snippet&mine=true"
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
			DisplayName:         "Youtube",
			Description:         "Show your channel and recent activity on your profile",
			AuthURL:             cfg.AuthURL,
			TokenURL:            cfg.TokenURL,
			RevokeURL:           cfg.RevokeURL,
			SupportedScopes:     []string{"profile", "activity"},
			DefaultScopes:       []string{"profile", "activity"},
			IssuesRefreshTokens: true,
		},
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		ProbeURL:     cfg.ProbeURL,
		ProbeParser:  parseChannelProbe,
		TokenTTL:     cfg.TokenTTL,
		HTTPClient:   cfg.HTTPClient,
	})
}

// parseChannelProbe pulls the channel title out of the channels.list
// response; it becomes the link's sync note ("Connected to <channel> ...").
func parseChannelProbe(body []byte) (string, []string, error) {
	var payload struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("youtube: decode channel probe: %w", err)
	}
	if len(payload.Items) == 0 {
		return "", nil, nil
	}
	return strings.TrimSpace(payload.Items[0].Snippet.Title), nil, nil
}
