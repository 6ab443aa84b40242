package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
)

// ErrInvalidInput marks malformed tool arguments.
var ErrInvalidInput = errors.New("invalid input")

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, identity.ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: err.Error(), RecoveryHint: "Check the bearer token"}
	case errors.Is(err, screen.ErrForbidden), errors.Is(err, screen.ErrUnknownRole):
		return &APIError{Code: "FORBIDDEN", Message: err.Error(), RecoveryHint: "Call list_screens for the screens your role may open"}
	case errors.Is(err, caselookup.ErrForbidden):
		return &APIError{Code: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, screen.ErrUnknownScreen):
		return &APIError{Code: "NOT_FOUND", Message: err.Error(), RecoveryHint: "Call list_screens for valid screen ids"}
	case errors.Is(err, screen.ErrNotOpen):
		return &APIError{Code: "NOT_FOUND", Message: err.Error(), RecoveryHint: "Call view_screen to open it"}
	case errors.Is(err, view.ErrInvalidOrder):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: `Use one field, e.g. "visit_date desc"`}
	case errors.Is(err, ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}

// toolError converts err for return from a tool handler.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return nil
}
