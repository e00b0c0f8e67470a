package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caltrack/internal/core"
)

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	return doRequest(s, r)
}

func decodeMutation(t *testing.T, w *httptest.ResponseRecorder) mutationResponse {
	t.Helper()
	var resp mutationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v\n%s", err, w.Body.String())
	}
	return resp
}

func TestSubmitRoundTrip(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := postJSON(t, s, "/submit", `{"date":"2026-08-30","meal":"Lunch","foodName":"Pasta","quantity":"120","unit":"g","calories":"420"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", w.Code, w.Body.String())
	}

	resp := decodeMutation(t, w)
	if resp.Status != "added" {
		t.Errorf("status = %q, want added", resp.Status)
	}
	bucket, ok := resp.Grouped["2026-08-30"]
	if !ok {
		t.Fatalf("grouped is missing the submitted date: %v", resp.Grouped)
	}
	if len(bucket.Meals) != 1 {
		t.Fatalf("bucket has %d meals, want 1", len(bucket.Meals))
	}
	got := bucket.Meals[0]
	if got.ID == 0 {
		t.Error("saved meal should carry an id")
	}
	if got.FoodName != "Pasta" || got.Slot != "Lunch" || got.Quantity != "120" || got.Unit != "g" {
		t.Errorf("saved meal = %+v", got)
	}
	if bucket.TotalCalories != 420 {
		t.Errorf("totalCalories = %d, want 420", bucket.TotalCalories)
	}
}

func TestSubmitWithoutDateStampsToday(t *testing.T) {
	fake := newFakeMealAPI()
	s := newTestServer(t, fake, Options{})

	w := postJSON(t, s, "/submit", `{"meal":"Snack","foodName":"Apple","quantity":"1","unit":"pc","calories":"95"}`)
	resp := decodeMutation(t, w)

	if _, ok := resp.Grouped[fake.today]; !ok {
		t.Errorf("undated meal should land on the server's current day, got %v", resp.Grouped)
	}
}

func TestSubmitCoercesCalories(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := postJSON(t, s, "/submit", `{"date":"2026-08-30","meal":"Lunch","foodName":"Mystery","quantity":"1","unit":"pc","calories":"not-a-number"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d", w.Code)
	}
	resp := decodeMutation(t, w)
	if resp.Grouped["2026-08-30"].TotalCalories != 0 {
		t.Errorf("unparseable calories should count as zero, total = %d", resp.Grouped["2026-08-30"].TotalCalories)
	}
}

func TestUpdateReplacesRecord(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := postJSON(t, s, "/submit", `{"date":"2026-08-30","meal":"Lunch","foodName":"Pasta","quantity":"120","unit":"g","calories":"420"}`)
	id := decodeMutation(t, w).Grouped["2026-08-30"].Meals[0].ID

	w = postJSON(t, s, "/update", `{"id":"`+id.String()+`","date":"2026-08-30","meal":"Lunch","foodName":"Pasta","quantity":"120","unit":"g","calories":"350"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeMutation(t, w)
	if resp.Status != "updated" {
		t.Errorf("status = %q, want updated", resp.Status)
	}
	bucket := resp.Grouped["2026-08-30"]
	if len(bucket.Meals) != 1 || bucket.Meals[0].ID != id {
		t.Fatalf("update must replace in place, got %+v", bucket.Meals)
	}
	if bucket.TotalCalories != 350 {
		t.Errorf("total should reflect the replacement only, got %d", bucket.TotalCalories)
	}
}

func TestUpdateMissingTargetStillSucceeds(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := postJSON(t, s, "/update", `{"id":"999","date":"2026-08-30","meal":"Lunch","foodName":"Ghost","quantity":"1","unit":"pc","calories":"100"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update of missing record = %d, want 200", w.Code)
	}
	resp := decodeMutation(t, w)
	if resp.Status != "updated" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Grouped) != 0 {
		t.Errorf("snapshot should be unchanged, got %v", resp.Grouped)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := postJSON(t, s, "/submit", `{"date":"2026-08-30","meal":"Lunch","foodName":"Pasta","quantity":"120","unit":"g","calories":"420"}`)
	id := decodeMutation(t, w).Grouped["2026-08-30"].Meals[0].ID
	postJSON(t, s, "/submit", `{"date":"2026-08-30","meal":"Dinner","foodName":"Soup","quantity":"1","unit":"bowl","calories":"250"}`)

	w = postJSON(t, s, "/delete", `{"id":"`+id.String()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeMutation(t, w)
	if resp.Status != "deleted" {
		t.Errorf("status = %q, want deleted", resp.Status)
	}
	bucket := resp.Grouped["2026-08-30"]
	if len(bucket.Meals) != 1 || bucket.Meals[0].FoodName != "Soup" {
		t.Fatalf("only the targeted record should go, got %+v", bucket.Meals)
	}

	// Deleting again is a no-op success.
	w = postJSON(t, s, "/delete", `{"id":"`+id.String()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat delete = %d, want 200", w.Code)
	}
	if got := decodeMutation(t, w).Grouped["2026-08-30"]; len(got.Meals) != 1 {
		t.Errorf("repeat delete must not remove anything else, got %+v", got.Meals)
	}
}

func TestListMealsReturnsGroupedSnapshot(t *testing.T) {
	fake := newFakeMealAPI()
	fake.records = []core.MealRecord{
		{ID: 1, Date: "2026-08-30", Slot: "Lunch", FoodName: "Pasta", Quantity: "120", Unit: "g", Calories: 420},
		{ID: 2, Date: "2026-08-30", Slot: "Dinner", FoodName: "Soup", Quantity: "1", Unit: "bowl", Calories: 250},
		{ID: 3, Date: "2026-08-31", Slot: "Breakfast", FoodName: "Oats", Quantity: "50", Unit: "g", Calories: 190},
	}
	s := newTestServer(t, fake, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/meals", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /meals = %d", w.Code)
	}

	var grouped map[string]core.DayBucket
	if err := json.Unmarshal(w.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("grouped has %d dates, want 2", len(grouped))
	}
	if grouped["2026-08-30"].TotalCalories != 670 {
		t.Errorf("2026-08-30 total = %d, want 670", grouped["2026-08-30"].TotalCalories)
	}
	if grouped["2026-08-31"].TotalCalories != 190 {
		t.Errorf("2026-08-31 total = %d, want 190", grouped["2026-08-31"].TotalCalories)
	}
}

func TestMutationValidationErrors(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	cases := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/submit", `{"meal":`},
		{"update without id", "/update", `{"meal":"Lunch","foodName":"Pasta","quantity":"1","unit":"pc","calories":"100"}`},
		{"update with bad id", "/update", `{"id":"abc","meal":"Lunch","foodName":"Pasta","quantity":"1","unit":"pc","calories":"100"}`},
		{"delete without id", "/delete", `{}`},
		{"delete with bad id", "/delete", `{"id":"zero"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, s, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	for _, path := range []string{"/submit", "/update", "/delete"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set("Accept", "application/json")
		if w := doRequest(s, r); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want 405", path, w.Code)
		}
	}

	r := httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader("{}"))
	r.Header.Set("Accept", "application/json")
	if w := doRequest(s, r); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /meals = %d, want 405", w.Code)
	}
}

func TestStorageFailureIsJSONError(t *testing.T) {
	fake := newFakeMealAPI()
	fake.err = errors.New("db closed")
	s := newTestServer(t, fake, Options{})

	w := postJSON(t, s, "/submit", `{"meal":"Lunch","foodName":"Pasta","quantity":"1","unit":"pc","calories":"100"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("submit with broken storage = %d, want 500", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("500 body should be JSON: %v", err)
	}
	if resp.Error == "" {
		t.Error("error response should carry a message")
	}
}
