package httpx

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes surfaced to API clients. Clients branch on
// these, never on message text, so the set is closed and stable.
const (
	CodeInvalidRequest         = "InvalidRequest"
	CodeInvalidCredentials     = "InvalidCredentials"
	CodeEmailTaken             = "EmailTaken"
	CodeMissingToken           = "MissingToken"
	CodeInvalidTokenFormat     = "InvalidTokenFormat"
	CodeTokenMalformed         = "TokenMalformed"
	CodeTokenExpired           = "TokenExpired"
	CodeTokenRevoked           = "TokenRevoked"
	CodeSignatureInvalid       = "SignatureInvalid"
	CodeIssuerAudienceMismatch = "IssuerAudienceMismatch"
	CodeRateLimitExceeded      = "RateLimitExceeded"
	CodeStoreUnavailable       = "StoreUnavailable"
	CodeNotFound               = "NotFound"
	CodeInternal               = "InternalError"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a uniform JSON error body with a machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Description: description})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
