package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"caltrack/internal/core"
)

// maxBodyBytes bounds mutation payloads; a meal record is tiny.
const maxBodyBytes = 64 << 10

// handleListMeals serves the full grouped snapshot the client caches for
// day navigation.
func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	grouped, err := s.meals.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load meals", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load meals")
		return
	}

	writeJSON(w, http.StatusOK, grouped)
}

// handleSubmit creates a meal record and answers with the refreshed
// grouped snapshot.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	m, err := decodeMeal(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid meal payload")
		return
	}

	grouped, err := s.meals.Create(r.Context(), m)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to save meal", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save meal")
		return
	}

	s.countMutation(statusAdded)
	writeJSON(w, http.StatusOK, mutationResponse{Status: statusAdded, Grouped: grouped})
}

// handleUpdate overwrites the record named by the payload id. Updating a
// record that no longer exists still succeeds; the snapshot simply comes
// back unchanged.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	m, err := decodeMeal(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid meal payload")
		return
	}
	if m.ID == 0 {
		writeJSONError(w, http.StatusBadRequest, "missing meal id")
		return
	}

	grouped, err := s.meals.Update(r.Context(), m)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to update meal", "id", m.ID.String(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to update meal")
		return
	}

	s.countMutation(statusUpdated)
	writeJSON(w, http.StatusOK, mutationResponse{Status: statusUpdated, Grouped: grouped})
}

// handleDelete removes the record named by the payload id. Like update,
// a missing target is not an error.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload struct {
		ID core.RecordID `json:"id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil || payload.ID == 0 {
		writeJSONError(w, http.StatusBadRequest, "missing meal id")
		return
	}

	grouped, err := s.meals.Delete(r.Context(), payload.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete meal", "id", payload.ID.String(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete meal")
		return
	}

	s.countMutation(statusDeleted)
	writeJSON(w, http.StatusOK, mutationResponse{Status: statusDeleted, Grouped: grouped})
}

// decodeMeal reads a mutation payload, scrubbing control characters from
// the free-text fields.
func decodeMeal(r *http.Request) (core.MealRecord, error) {
	var m core.MealRecord
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&m); err != nil {
		return core.MealRecord{}, err
	}

	m.Date = sanitizeInput(m.Date)
	m.Slot = sanitizeInput(m.Slot)
	m.FoodName = sanitizeInput(m.FoodName)
	m.Quantity = sanitizeInput(m.Quantity)
	m.Unit = sanitizeInput(m.Unit)

	return m, nil
}
