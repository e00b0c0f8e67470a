package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"caltrack/internal/auth"
	"caltrack/internal/core"
)

// fakeMealAPI is an in-memory stand-in for the meal service.
type fakeMealAPI struct {
	mu      sync.Mutex
	records []core.MealRecord
	nextID  core.RecordID
	err     error

	today string
}

func newFakeMealAPI() *fakeMealAPI {
	return &fakeMealAPI{today: "2026-09-01"}
}

func (f *fakeMealAPI) Snapshot(ctx context.Context) (map[string]core.DayBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return core.GroupByDate(f.records), nil
}

func (f *fakeMealAPI) Create(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if m.Date == "" || !core.ValidDate(m.Date) {
		m.Date = f.today
	}
	f.nextID++
	m.ID = f.nextID
	f.records = append(f.records, m)
	return core.GroupByDate(f.records), nil
}

func (f *fakeMealAPI) Update(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i, rec := range f.records {
		if rec.ID == m.ID {
			if m.Date == "" {
				m.Date = rec.Date
			}
			f.records[i] = m
			break
		}
	}
	return core.GroupByDate(f.records), nil
}

func (f *fakeMealAPI) Delete(ctx context.Context, id core.RecordID) (map[string]core.DayBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i, rec := range f.records {
		if rec.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			break
		}
	}
	return core.GroupByDate(f.records), nil
}

func newTestServer(t *testing.T, meals MealAPI, opts Options) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", meals, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, r)
	return w
}

func TestIndexRenders(t *testing.T) {
	fake := newFakeMealAPI()
	fake.records = []core.MealRecord{
		{ID: 1, Date: "2026-08-30", Slot: "Lunch", FoodName: "Soup", Quantity: "1", Unit: "bowl", Calories: 250},
	}
	s := newTestServer(t, fake, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "2026-08-30") {
		t.Errorf("index should render the selected day, got:\n%s", body)
	}
	if !strings.Contains(body, "Soup") {
		t.Errorf("index should render the day's meals")
	}
}

func TestIndexEscapesStoredMarkup(t *testing.T) {
	fake := newFakeMealAPI()
	fake.records = []core.MealRecord{
		{ID: 1, Date: "2026-08-30", Slot: "Lunch", FoodName: `<script>alert(1)</script>`, Quantity: "1", Unit: "bowl", Calories: 250},
	}
	s := newTestServer(t, fake, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatal("stored markup must not render as HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("stored markup should render escaped, got:\n%s", body)
	}
}

func TestUnknownPathReturnsPlainNotFound(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	for _, path := range []string{"/nope", "/meals/extra", "/api/v1/meals"} {
		w := doRequest(s, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
		if got := w.Body.String(); got != "404 Error: File Not Found" {
			t.Errorf("GET %s body = %q", path, got)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("GET %s content type = %q, want text/plain", path, ct)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestPostRateLimit(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	payload := `{"meal":"Lunch","foodName":"Rice","quantity":"100","unit":"g","calories":"130"}`
	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		r := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(payload))
		r.RemoteAddr = "203.0.113.9:4321"
		last = doRequest(s, r)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("61st POST status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", last.Header().Get("Retry-After"))
	}
}

func TestLoginGate(t *testing.T) {
	sessions := auth.NewSessionStore(time.Hour)
	s := newTestServer(t, newFakeMealAPI(), Options{
		Provider: &auth.Provider{},
		Sessions: sessions,
	})

	// Browser navigation without a session goes to the login page.
	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("GET / = %d -> %q, want 303 -> /login", w.Code, w.Header().Get("Location"))
	}

	// API calls get a JSON 401 instead of a redirect.
	r := httptest.NewRequest(http.MethodGet, "/meals", nil)
	r.Header.Set("Accept", "application/json")
	w = doRequest(s, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /meals = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "login required") {
		t.Errorf("401 body = %q", w.Body.String())
	}

	// A valid session cookie opens the gate.
	sess := sessions.Create(auth.Identity{Email: "a@example.com"})
	r = httptest.NewRequest(http.MethodGet, "/meals", nil)
	r.Header.Set("Accept", "application/json")
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.Token})
	w = doRequest(s, r)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /meals with session = %d, want 200", w.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	sessions := auth.NewSessionStore(time.Hour)
	s := newTestServer(t, newFakeMealAPI(), Options{
		Provider: &auth.Provider{},
		Sessions: sessions,
	})

	sess := sessions.Create(auth.Identity{Email: "a@example.com"})
	r := httptest.NewRequest(http.MethodGet, "/logout", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.Token})
	w := doRequest(s, r)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("logout = %d -> %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok := sessions.Get(sess.Token); ok {
		t.Error("session should be gone after logout")
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}

	w = doRequest(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz = %d", w.Code)
	}

	failing := newFakeMealAPI()
	failing.err = errors.New("db closed")
	s2 := newTestServer(t, failing, Options{})
	w = doRequest(s2, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with broken storage = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, newFakeMealAPI(), Options{})

	payload := `{"meal":"Lunch","foodName":"Rice","quantity":"100","unit":"g","calories":"130"}`
	doRequest(s, httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(payload)))

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "caltrack_uptime_seconds") {
		t.Error("metrics should report uptime")
	}
	if !strings.Contains(body, `caltrack_meals_mutations_total{op="create"} 1`) {
		t.Errorf("metrics should count the create, got:\n%s", body)
	}
}
