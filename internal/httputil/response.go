// Package httputil holds small JSON request/response helpers used by the
// skurge HTTP handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// envelope is the response shape of every skurge API endpoint.
type envelope struct {
	Error    string      `json:"error"`
	Response interface{} `json:"response"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteResponse writes data wrapped in the standard skurge envelope.
func WriteResponse(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, envelope{Response: data})
}

// WriteError writes an error message in the standard skurge envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, envelope{Error: message, Response: ""})
}

// DecodeJSON decodes the request body into dst. An empty body is not an
// error; dst is left untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
