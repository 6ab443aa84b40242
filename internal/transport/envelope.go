package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
)

// Error codes of the API envelope.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
	CodeInternal     = "INTERNAL"
)

// ErrInvalidInput marks malformed request input.
var ErrInvalidInput = errors.New("invalid input")

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Response is the body of every API response.
type Response struct {
	Result any       `json:"result,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError is the error member of a Response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to API errors.
func MapError(err error) *APIError {
	var apiErr *APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, identity.ErrUnauthorized):
		return &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, screen.ErrForbidden),
		errors.Is(err, screen.ErrUnknownRole),
		errors.Is(err, caselookup.ErrForbidden),
		errors.Is(err, activity.ErrForbidden):
		return &APIError{Status: http.StatusForbidden, Code: CodeForbidden, Message: err.Error()}
	case errors.Is(err, screen.ErrUnknownScreen), errors.Is(err, screen.ErrNotOpen):
		return &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, view.ErrInvalidOrder),
		errors.Is(err, screen.ErrNotImportable),
		errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Status: http.StatusBadRequest, Code: CodeInvalidInput, Message: err.Error()}
	default:
		return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
	}
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Response{Result: result})
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := MapError(err)
	writeJSON(w, apiErr.Status, Response{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidInput("decode body: %v", err)
	}
	return nil
}
