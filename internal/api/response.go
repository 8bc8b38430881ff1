package api

import (
	"encoding/json"
	"net/http"

	"slotbook/internal/notify"
)

// writeJSON writes payload and, when the handler produced visitor notices,
// adds them under "notices".
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, payload map[string]any) {
	if c, ok := notify.CollectorFrom(r.Context()); ok {
		if notices := c.Notices(); len(notices) > 0 {
			payload["notices"] = notices
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, r, statusCode, map[string]any{"error": message})
}
