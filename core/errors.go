package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	LinkingErrorBadInput            = "LINKING_BAD_INPUT"
	LinkingErrorProviderNotFound    = "LINKING_PROVIDER_NOT_FOUND"
	LinkingErrorInvalidState        = "LINKING_STATE_INVALID"
	LinkingErrorProviderDenied      = "LINKING_PROVIDER_DENIED"
	LinkingErrorConflictingUpdate   = "LINKING_CONFLICTING_UPDATE"
	LinkingErrorProviderUnavailable = "LINKING_PROVIDER_UNAVAILABLE"
	LinkingErrorNotLinked           = "LINKING_NOT_LINKED"
	LinkingErrorAlreadyLinked       = "LINKING_ALREADY_LINKED"
	LinkingErrorInternal            = "LINKING_INTERNAL_ERROR"
)

// ProviderDeniedError carries the provider's callback error so the caller can
// tell "you said no" apart from "try again later".
type ProviderDeniedError struct {
	ProviderID  string
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e == nil {
		return "core: provider denied authorization"
	}
	message := fmt.Sprintf("core: provider %q denied authorization", e.ProviderID)
	if strings.TrimSpace(e.Code) != "" {
		message += ": " + strings.TrimSpace(e.Code)
	}
	if strings.TrimSpace(e.Description) != "" {
		message += " (" + strings.TrimSpace(e.Description) + ")"
	}
	return message
}

// ProviderUnavailableError marks a transient provider failure; interactive
// callers surface a retry condition and the scheduler backs off.
type ProviderUnavailableError struct {
	ProviderID string
	Cause      error
}

func (e *ProviderUnavailableError) Error() string {
	if e == nil {
		return "core: provider unavailable"
	}
	if e.Cause == nil {
		return fmt.Sprintf("core: provider %q unavailable", e.ProviderID)
	}
	return fmt.Sprintf("core: provider %q unavailable: %v", e.ProviderID, e.Cause)
}

func (e *ProviderUnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return linkingErrorMapper(err)
}

func linkingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureLinkingErrorEnvelope(richErr)
	}

	var denied *ProviderDeniedError
	if errors.As(err, &denied) {
		return newLinkingError(err.Error(), goerrors.CategoryAuth, LinkingErrorProviderDenied)
	}
	var unavailable *ProviderUnavailableError
	if errors.As(err, &unavailable) {
		return newLinkingError(err.Error(), goerrors.CategoryExternal, LinkingErrorProviderUnavailable)
	}
	if errors.Is(err, ErrConflictingUpdate) {
		return newLinkingError(err.Error(), goerrors.CategoryConflict, LinkingErrorConflictingUpdate)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newLinkingError(err.Error(), goerrors.CategoryExternal, LinkingErrorProviderUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newLinkingError(err.Error(), goerrors.CategoryNotFound, LinkingErrorProviderNotFound)
	case strings.Contains(msg, "pending authorization"), strings.Contains(msg, "state expired"), strings.Contains(msg, "state not found"):
		return newLinkingError(err.Error(), goerrors.CategoryAuth, LinkingErrorInvalidState)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newLinkingError(err.Error(), goerrors.CategoryBadInput, LinkingErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureLinkingErrorEnvelope(mapped)
}

func newLinkingError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureLinkingErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureLinkingErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = linkingHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultLinkingTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultLinkingTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return LinkingErrorBadInput
	case goerrors.CategoryNotFound:
		return LinkingErrorProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return LinkingErrorInvalidState
	case goerrors.CategoryConflict:
		return LinkingErrorConflictingUpdate
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return LinkingErrorProviderUnavailable
	default:
		return LinkingErrorInternal
	}
}

func linkingHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
