package providers_test

import (
	"testing"

	"github.com/streamkit/go-linking/core"
	"github.com/streamkit/go-linking/providers/discord"
	"github.com/streamkit/go-linking/providers/steam"
	"github.com/streamkit/go-linking/providers/youtube"
)

func TestBuiltinProviders_RegisterCleanly(t *testing.T) {
	registry := core.NewProviderRegistry()

	discordProvider, err := discord.New(discord.Config{ClientID: "discord-client"})
	if err != nil {
		t.Fatalf("discord: %v", err)
	}
	steamProvider, err := steam.New(steam.Config{ClientID: "steam-client"})
	if err != nil {
		t.Fatalf("steam: %v", err)
	}
	youtubeProvider, err := youtube.New(youtube.Config{ClientID: "youtube-client"})
	if err != nil {
		t.Fatalf("youtube: %v", err)
	}

	for _, provider := range []core.Provider{discordProvider, steamProvider, youtubeProvider} {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register %s: %v", provider.ID(), err)
		}
	}
	if got := len(registry.List()); got != 3 {
		t.Fatalf("expected 3 providers, got %d", got)
	}
}

func TestBuiltinProviders_RequireClientID(t *testing.T) {
	if _, err := discord.New(discord.Config{}); err == nil {
		t.Fatalf("expected discord to require client id")
	}
	if _, err := steam.New(steam.Config{}); err == nil {
		t.Fatalf("expected steam to require client id")
	}
	if _, err := youtube.New(youtube.Config{}); err == nil {
		t.Fatalf("expected youtube to require client id")
	}
}

func TestDiscordDescriptor(t *testing.T) {
	provider, err := discord.New(discord.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("discord: %v", err)
	}
	descriptor := provider.Descriptor()
	if descriptor.DisplayName != "Discord" {
		t.Fatalf("unexpected display name: %q", descriptor.DisplayName)
	}
	if descriptor.Description != "Join community servers and chat with followers" {
		t.Fatalf("unexpected description: %q", descriptor.Description)
	}
	if !descriptor.SupportsRevocation() || !descriptor.IssuesRefreshTokens {
		t.Fatalf("expected revocation and refresh support")
	}
	if !core.ScopeSupported(descriptor.SupportedScopes, "identify") || !core.ScopeSupported(descriptor.SupportedScopes, "guilds") {
		t.Fatalf("unexpected scopes: %v", descriptor.SupportedScopes)
	}
}

func TestSteamDescriptor(t *testing.T) {
	provider, err := steam.New(steam.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("steam: %v", err)
	}
	descriptor := provider.Descriptor()
	if descriptor.DisplayName != "Steam" {
		t.Fatalf("unexpected display name: %q", descriptor.DisplayName)
	}
	if descriptor.Description != "Share visual content across platforms" {
		t.Fatalf("unexpected description: %q", descriptor.Description)
	}
	if descriptor.SupportsRevocation() || descriptor.IssuesRefreshTokens {
		t.Fatalf("steam must not advertise revocation or refresh")
	}
	if len(descriptor.SupportedScopes) != 1 || descriptor.SupportedScopes[0] != "profile" {
		t.Fatalf("unexpected scopes: %v", descriptor.SupportedScopes)
	}
}

func TestYoutubeDescriptor(t *testing.T) {
	provider, err := youtube.New(youtube.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("youtube: %v", err)
	}
	descriptor := provider.Descriptor()
	if descriptor.DisplayName != "Youtube" {
		t.Fatalf("unexpected display name: %q", descriptor.DisplayName)
	}
	if !descriptor.SupportsRevocation() || !descriptor.IssuesRefreshTokens {
		t.Fatalf("expected revocation and refresh support")
	}
	for _, scope := range []string{"profile", "activity"} {
		if !core.ScopeSupported(descriptor.SupportedScopes, scope) {
			t.Fatalf("expected scope %q supported", scope)
		}
	}
}
