package core

import (
	"errors"
	"strings"
	"testing"
)

func TestProviderRegistry_RegisterAndGet(t *testing.T) {
	registry := NewProviderRegistry()
	if err := registry.Register(newFakeProvider("discord")); err != nil {
		t.Fatalf("register: %v", err)
	}

	provider, ok := registry.Get("discord")
	if !ok || provider.ID() != "discord" {
		t.Fatalf("expected registered provider")
	}
	if _, ok := registry.Get("steam"); ok {
		t.Fatalf("expected miss for unknown provider")
	}
	if _, ok := registry.Get(" "); ok {
		t.Fatalf("expected miss for blank id")
	}
}

func TestProviderRegistry_GetIsCaseInsensitive(t *testing.T) {
	registry := NewProviderRegistry()
	if err := registry.Register(newFakeProvider("discord")); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, id := range []string{"Discord", "DISCORD", "  discord  "} {
		provider, ok := registry.Get(id)
		if !ok || provider.ID() != "discord" {
			t.Fatalf("expected %q to resolve the registered provider", id)
		}
	}
}

func TestProviderRegistry_RejectsDuplicate(t *testing.T) {
	registry := NewProviderRegistry()
	if err := registry.Register(newFakeProvider("discord")); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := registry.Register(newFakeProvider("discord"))
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestProviderRegistry_RejectsInvalidDescriptor(t *testing.T) {
	registry := NewProviderRegistry()
	provider := newFakeProvider("discord")
	provider.descriptor.SupportedScopes = nil

	err := registry.Register(provider)
	if err == nil {
		t.Fatalf("expected descriptor validation failure")
	}
	if !errors.Is(err, ErrInvalidProviderDescriptor) {
		t.Fatalf("expected descriptor error, got %v", err)
	}
}

func TestProviderRegistry_ListIsSorted(t *testing.T) {
	registry := NewProviderRegistry()
	for _, id := range []string{"youtube", "discord", "steam"} {
		if err := registry.Register(newFakeProvider(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	providers := registry.List()
	if len(providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(providers))
	}
	want := []string{"discord", "steam", "youtube"}
	for i, provider := range providers {
		if provider.ID() != want[i] {
			t.Fatalf("expected %s at index %d, got %s", want[i], i, provider.ID())
		}
	}
}
