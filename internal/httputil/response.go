package httputil

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in ErrorBody.Code.
const (
	CodeInvalidParameter     = "invalid_parameter"
	CodeUnknownConstellation = "unknown_constellation"
	CodeNoCacheAvailable     = "no_cache_available"
	CodeRateLimited          = "rate_limited"
	CodeUnauthorized         = "unauthorized"
	CodeNotFound             = "not_found"
	CodeInternal             = "internal_error"
)

// ErrorBody is the JSON payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody with the given status.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	_ = WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}
