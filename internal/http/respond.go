package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"caltrack/internal/core"
)

const (
	statusAdded   = "added"
	statusUpdated = "updated"
	statusDeleted = "deleted"
)

// mutationResponse is the envelope every mutation returns: which
// operation ran plus the freshly aggregated snapshot.
type mutationResponse struct {
	Status  string                    `json:"status"`
	Grouped map[string]core.DayBucket `json:"grouped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed encoding JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
