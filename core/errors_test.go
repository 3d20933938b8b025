package core

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestLinkingErrorMapper_TypedErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
	}{
		{
			"provider denied",
			&ProviderDeniedError{ProviderID: "discord", Code: "access_denied"},
			goerrors.CategoryAuth,
			LinkingErrorProviderDenied,
		},
		{
			"provider unavailable",
			&ProviderUnavailableError{ProviderID: "discord", Cause: fmt.Errorf("dial tcp: timeout")},
			goerrors.CategoryExternal,
			LinkingErrorProviderUnavailable,
		},
		{
			"conflicting update",
			fmt.Errorf("core: version mismatch: %w", ErrConflictingUpdate),
			goerrors.CategoryConflict,
			LinkingErrorConflictingUpdate,
		},
		{
			"deadline exceeded",
			fmt.Errorf("revoke: %w", context.DeadlineExceeded),
			goerrors.CategoryExternal,
			LinkingErrorProviderUnavailable,
		},
		{
			"provider not registered",
			fmt.Errorf("provider %q is not registered", "mastodon"),
			goerrors.CategoryNotFound,
			LinkingErrorProviderNotFound,
		},
		{
			"pending authorization missing",
			fmt.Errorf("core: pending authorization state not found"),
			goerrors.CategoryAuth,
			LinkingErrorInvalidState,
		},
		{
			"bad input",
			fmt.Errorf("core: user id is required"),
			goerrors.CategoryBadInput,
			LinkingErrorBadInput,
		},
	}
	for _, tc := range cases {
		mapped := defaultErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("%s: expected mapped error", tc.name)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%s: expected category %s, got %s", tc.name, tc.category, mapped.Category)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %s, got %s", tc.name, tc.textCode, mapped.TextCode)
		}
	}
}

func TestLinkingErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("account is already linked", goerrors.CategoryConflict).
		WithTextCode(LinkingErrorAlreadyLinked)
	mapped := defaultErrorMapper(original)
	if mapped.TextCode != LinkingErrorAlreadyLinked {
		t.Fatalf("expected text code preserved, got %s", mapped.TextCode)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status filled in, got %d", mapped.Code)
	}
}

func TestLinkingErrorMapper_NilError(t *testing.T) {
	if mapped := defaultErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil mapping, got %v", mapped)
	}
}

func TestLinkingHTTPStatus(t *testing.T) {
	cases := map[goerrors.Category]int{
		goerrors.CategoryBadInput:  http.StatusBadRequest,
		goerrors.CategoryNotFound:  http.StatusNotFound,
		goerrors.CategoryAuth:      http.StatusUnauthorized,
		goerrors.CategoryConflict:  http.StatusConflict,
		goerrors.CategoryExternal:  http.StatusBadGateway,
		goerrors.CategoryRateLimit: http.StatusTooManyRequests,
		goerrors.CategoryInternal:  http.StatusInternalServerError,
	}
	for category, want := range cases {
		if got := linkingHTTPStatus(category); got != want {
			t.Fatalf("category %s: expected %d, got %d", category, want, got)
		}
	}
}
