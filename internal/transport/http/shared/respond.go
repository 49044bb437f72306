// Package shared holds response helpers used by every HTTP handler, so error
// payloads and JSON encoding stay uniform across the API surface.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "weekchain/pkg/domain-errors"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and writes the coded
// error body. Unrecognized errors become 500s with a generic message so
// internal details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorResponse{
		Error: errorBody{
			Code:    string(code),
			Message: dErrors.MessageOf(err),
		},
	})
}
