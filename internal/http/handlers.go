package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"caltrack/internal/core"
	"caltrack/internal/view"
)

const (
	sessionCookie = "caltrack_session"
	stateCookie   = "caltrack_oauth_state"
)

// indexData feeds the tracker page template. The server renders the
// initially selected day; after that app.js owns navigation.
type indexData struct {
	Email       string
	AuthEnabled bool
	Dates       []string
	CurrentDate string
	Bucket      core.DayBucket
}

// handleIndex renders the tracker page. It is also the mux catch-all, so
// any path nothing else claimed lands here and gets the plain-text 404.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "404 Error: File Not Found")
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := indexData{AuthEnabled: s.provider != nil}
	if sess, ok := s.currentSession(r); ok {
		data.Email = sess.Identity.Email
	}

	grouped, err := s.meals.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load meals for index", "error", err)
		grouped = map[string]core.DayBucket{}
	}
	cursor := view.NewCursor(grouped, "", core.Today(s.now()), -1)
	data.Dates = cursor.Dates
	if !cursor.Empty() {
		data.CurrentDate = cursor.Current()
		data.Bucket = grouped[cursor.Current()]
	}

	s.render(w, r, "index.html", data)
}

// handleLogin shows the login page, or skips straight to the tracker when
// no login is needed or a session already exists.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", nil)
}

// handleAuthStart kicks off the Google authorization-code flow. The state
// nonce rides in a short-lived cookie for the callback to verify.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusSeeOther)
}

// handleAuthCallback finishes the flow: verify state, trade the code for
// an identity, open a session and send the browser to the tracker.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil || s.sessions == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	stateParam := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || stateParam == "" || cookie.Value != stateParam {
		slog.WarnContext(r.Context(), "OAuth state mismatch", "client_ip", extractClientIP(r))
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	clearCookie(w, stateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	identity, err := s.provider.Exchange(r.Context(), code)
	if err != nil {
		slog.ErrorContext(r.Context(), "OAuth exchange failed", "error", err)
		http.Error(w, "Login failed", http.StatusBadGateway)
		return
	}

	sess := s.sessions.Create(identity)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	slog.InfoContext(r.Context(), "User logged in", "email", identity.Email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout drops the session and returns to the login page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && s.sessions != nil {
		s.sessions.Delete(cookie.Value)
	}
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports whether storage answers. Load balancers poll this
// to decide when to route traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.meals.Snapshot(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics exposes operational counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	uptime := time.Since(s.metrics.startedAt).Seconds()
	sessions := 0
	if s.sessions != nil {
		sessions = s.sessions.Len()
	}

	fmt.Fprintf(w, "# HELP caltrack_uptime_seconds Time since the server started.\n")
	fmt.Fprintf(w, "# TYPE caltrack_uptime_seconds counter\n")
	fmt.Fprintf(w, "caltrack_uptime_seconds %.0f\n", uptime)
	fmt.Fprintf(w, "# HELP caltrack_meals_mutations_total Completed meal mutations by operation.\n")
	fmt.Fprintf(w, "# TYPE caltrack_meals_mutations_total counter\n")
	fmt.Fprintf(w, "caltrack_meals_mutations_total{op=\"create\"} %d\n", atomic.LoadInt64(&s.metrics.totalCreates))
	fmt.Fprintf(w, "caltrack_meals_mutations_total{op=\"update\"} %d\n", atomic.LoadInt64(&s.metrics.totalUpdates))
	fmt.Fprintf(w, "caltrack_meals_mutations_total{op=\"delete\"} %d\n", atomic.LoadInt64(&s.metrics.totalDeletes))
	fmt.Fprintf(w, "# HELP caltrack_rate_limit_rejections_total Requests rejected by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE caltrack_rate_limit_rejections_total counter\n")
	fmt.Fprintf(w, "caltrack_rate_limit_rejections_total %d\n", s.rateLimiter.totalHits())
	fmt.Fprintf(w, "# HELP caltrack_rate_limit_tracked_clients Client IPs currently tracked by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE caltrack_rate_limit_tracked_clients gauge\n")
	fmt.Fprintf(w, "caltrack_rate_limit_tracked_clients %d\n", s.rateLimiter.activeClients())
	fmt.Fprintf(w, "# HELP caltrack_suspicious_requests_total Requests flagged by pattern checks.\n")
	fmt.Fprintf(w, "# TYPE caltrack_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "caltrack_suspicious_requests_total %d\n", atomic.LoadInt64(&s.security.suspiciousRequests))
	fmt.Fprintf(w, "# HELP caltrack_active_sessions Live login sessions.\n")
	fmt.Fprintf(w, "# TYPE caltrack_active_sessions gauge\n")
	fmt.Fprintf(w, "caltrack_active_sessions %d\n", sessions)
	fmt.Fprintf(w, "# HELP caltrack_goroutines Current goroutine count.\n")
	fmt.Fprintf(w, "# TYPE caltrack_goroutines gauge\n")
	fmt.Fprintf(w, "caltrack_goroutines %d\n", runtime.NumGoroutine())
}

// render executes a template into a buffer first, so a mid-render failure
// becomes a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Failed rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "Failed writing response", "template", name, "error", err)
	}
}
