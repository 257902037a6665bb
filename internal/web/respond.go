package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"gridvend/internal/logging"
)

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode failed", "error", err)
	}
}

// writeError writes a JSON error response. The full message is logged
// server-side; the client gets a sanitized version.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", message)

	writeJSON(w, r, status, map[string]string{"error": sanitizeErrorMessage(message)})
}

// sanitizeErrorMessage keeps validation and business errors intact but hides
// database internals from clients.
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, marker := range []string{"sqlstate", "connection refused", "dial tcp", "pgx"} {
		if strings.Contains(lower, marker) {
			return "internal error"
		}
	}
	return message
}
