package app

import (
	"errors"
	"fmt"
	"net/http"

	"frameline/api/internal/assistant"
	"frameline/api/internal/auth"
	"frameline/api/internal/editor"
	"frameline/api/internal/store"
	"frameline/api/internal/versionstack"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func notFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var persistErr *editor.PersistError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, editor.ErrPhaseLocked):
		return http.StatusConflict, "PHASE_LOCKED", "Phase is locked", nil
	case errors.Is(err, editor.ErrCorruptState):
		return http.StatusConflict, "WORKSPACE_CORRUPT", "Workspace state is corrupt", map[string]any{"recoverable": true}
	case errors.Is(err, editor.ErrUnknownPhase), errors.Is(err, editor.ErrUnknownTool), errors.Is(err, versionstack.ErrBadAction):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, assistant.ErrBusy):
		return http.StatusTooManyRequests, "ASSISTANT_BUSY", "A reply for this document is still pending", nil
	case errors.Is(err, assistant.ErrNotConfigured):
		return http.StatusServiceUnavailable, "ASSISTANT_UNAVAILABLE", "Assistant is not configured", nil
	case errors.As(err, &persistErr):
		return http.StatusBadGateway, "PERSIST_FAILED", "Change applied but could not be saved", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
