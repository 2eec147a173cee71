package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the standard {"error":{"code","message"}} envelope.
// It mirrors httputil.WriteJSON without importing it, keeping middleware free
// of handler-level dependencies.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
