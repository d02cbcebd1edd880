// Package shared holds the response helpers used by every HTTP handler.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
)

type errorBody struct {
	Code    dErrors.Code `json:"code"`
	Message string       `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// WriteJSON writes v with the given status. Encoding failures are silent;
// the status line has already gone out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a coded domain error to its HTTP status and an error
// envelope carrying only the operator-safe message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorEnvelope{
		Error: errorBody{Code: code, Message: dErrors.MessageOf(err)},
	})
}
