package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/bot"
	"github.com/mcoot/villefarm/internal/services/identity"
)

// APIError represents an API error response
type APIError struct {
	Code string `json:"code"`
	// LegacyCode is the coarser on-chain error code, when one applies
	LegacyCode string `json:"legacy_code,omitempty"`
	Message    string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeAlreadyInitialized = "ALREADY_INITIALIZED"
	CodeWrongAuthority     = "WRONG_AUTHORITY"
	CodeNotEnoughEnergy    = "NOT_ENOUGH_ENERGY"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeUnknownKind        = "UNKNOWN_KIND"
	CodeUnknownStrategy    = "UNKNOWN_STRATEGY"
	CodePlotOccupied       = "PLOT_OCCUPIED"
	CodeNotMature          = "NOT_MATURE"
	CodeNothingPlanted     = "NOTHING_PLANTED"
	CodeDelegationNotFound = "DELEGATION_NOT_FOUND"
	CodeDelegationExpired  = "DELEGATION_EXPIRED"
	CodeInvalidDelegation  = "INVALID_DELEGATION"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRouteNotFound      = "NOT_FOUND"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

var mappings = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	// Farm errors come first: authority refusals wrap the delegation cause
	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound, "Player not found"},
	{model.ErrAlreadyInitialized, http.StatusConflict, CodeAlreadyInitialized, "Player is already initialized"},
	{model.ErrWrongAuthority, http.StatusForbidden, CodeWrongAuthority, "Signer is not the owner or a valid delegate"},
	{model.ErrNotEnoughEnergy, http.StatusConflict, CodeNotEnoughEnergy, "Not enough energy"},
	{model.ErrInsufficientFunds, http.StatusConflict, CodeInsufficientFunds, "Not enough gold"},
	{model.ErrUnknownKind, http.StatusBadRequest, CodeUnknownKind, "Unknown kind"},
	{model.ErrPlotOccupied, http.StatusConflict, CodePlotOccupied, "Plot is already occupied"},
	{model.ErrNotMature, http.StatusConflict, CodeNotMature, "Not ready for harvest yet"},
	{model.ErrNothingPlanted, http.StatusConflict, CodeNothingPlanted, "Nothing was planted"},

	{model.ErrIdentityNotFound, http.StatusNotFound, CodeIdentityNotFound, "Identity not found"},
	{model.ErrDelegationNotFound, http.StatusNotFound, CodeDelegationNotFound, "Delegation not found"},
	{model.ErrDelegationExpired, http.StatusGone, CodeDelegationExpired, "Delegation has expired"},
	{model.ErrInvalidDelegation, http.StatusBadRequest, CodeInvalidDelegation, ""},

	{bot.ErrUnknownStrategy, http.StatusBadRequest, CodeUnknownStrategy, ""},

	// Identity errors
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password"},
	{identity.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session"},
	{identity.ErrUsernameExists, http.StatusConflict, CodeUsernameExists, "Username already exists"},
	{identity.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidRequest, ""},
	{identity.ErrPasswordTooShort, http.StatusBadRequest, CodeInvalidRequest, ""},
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			msg := m.msg
			if msg == "" {
				// Validation errors carry the useful detail in their text
				msg = err.Error()
			}
			return &httpError{m.status, APIError{Code: m.code, LegacyCode: model.LegacyCode(err), Message: msg}}
		}
	}

	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}

// NewNotFoundError creates an error for unknown routes
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{Code: CodeRouteNotFound, Message: "Not found"}}
}

// NewMethodNotAllowedError creates an error for a known route with the wrong method
func NewMethodNotAllowedError() error {
	return &httpError{http.StatusMethodNotAllowed, APIError{Code: CodeMethodNotAllowed, Message: "Method not allowed"}}
}
