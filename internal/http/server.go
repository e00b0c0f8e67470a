// Package http provides the caltrack web server: the tracker UI, the
// meals JSON API, and the Google-login gate in front of them.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"caltrack/internal/auth"
	"caltrack/internal/core"
	appweb "caltrack/web"
)

// MealAPI is the slice of the meal service the handlers need.
type MealAPI interface {
	Snapshot(ctx context.Context) (map[string]core.DayBucket, error)
	Create(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error)
	Update(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error)
	Delete(ctx context.Context, id core.RecordID) (map[string]core.DayBucket, error)
}

// Options carries the optional collaborators of the server. A nil
// Provider disables the login gate; Sessions is required when Provider is
// set.
type Options struct {
	Provider *auth.Provider
	Sessions *auth.SessionStore
}

type appMetrics struct {
	startedAt    time.Time
	totalCreates int64
	totalUpdates int64
	totalDeletes int64
}

type Server struct {
	http.Server
	templates *template.Template
	meals     MealAPI

	provider *auth.Provider
	sessions *auth.SessionStore

	rateLimiter *rateLimiter
	security    *securityMetrics
	metrics     *appMetrics

	now func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, meals MealAPI, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		meals:       meals,
		provider:    opts.Provider,
		sessions:    opts.Sessions,
		rateLimiter: newRateLimiter(),
		security:    &securityMetrics{},
		metrics:     &appMetrics{startedAt: time.Now()},
		now:         time.Now,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// UI and login flow. The index handler doubles as the catch-all, so
	// unmatched routes get the plain-text 404 there.
	mux.HandleFunc("/", s.withMiddleware(s.requireSession(s.handleIndex)))
	mux.HandleFunc("/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("/auth/google", s.withMiddleware(s.handleAuthStart))
	mux.HandleFunc("/auth/callback", s.withMiddleware(s.handleAuthCallback))
	mux.HandleFunc("/logout", s.withMiddleware(s.handleLogout))

	// JSON API, same session gate as the UI.
	mux.HandleFunc("/meals", s.withMiddleware(s.requireSession(s.handleListMeals)))
	mux.HandleFunc("/submit", s.withMiddleware(s.requireSession(s.handleSubmit)))
	mux.HandleFunc("/update", s.withMiddleware(s.requireSession(s.handleUpdate)))
	mux.HandleFunc("/delete", s.withMiddleware(s.requireSession(s.handleDelete)))

	return s
}

// Shutdown gracefully shuts down the server and its janitors.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.sessions != nil {
			s.sessions.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, request tracing and POST rate
// limiting around a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.security) {
			slog.WarnContext(ctx, "Suspicious request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP)
		}

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireSession redirects browser requests to the login page and turns
// away API requests with a 401 when no valid session cookie is present.
// With no provider configured the app runs open.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.provider == nil {
			next(w, r)
			return
		}
		if _, ok := s.currentSession(r); !ok {
			if acceptsHTML(r) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			} else {
				writeJSONError(w, http.StatusUnauthorized, "login required")
			}
			return
		}
		next(w, r)
	}
}

func (s *Server) currentSession(r *http.Request) (auth.Session, bool) {
	if s.sessions == nil {
		return auth.Session{}, false
	}
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return auth.Session{}, false
	}
	return s.sessions.Get(cookie.Value)
}

func acceptsHTML(r *http.Request) bool {
	// The browser navigations we redirect are plain GETs; fetch() calls
	// from app.js ask for JSON.
	return r.Method == http.MethodGet && r.Header.Get("Accept") != "application/json"
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) countMutation(status string) {
	switch status {
	case statusAdded:
		atomic.AddInt64(&s.metrics.totalCreates, 1)
	case statusUpdated:
		atomic.AddInt64(&s.metrics.totalUpdates, 1)
	case statusDeleted:
		atomic.AddInt64(&s.metrics.totalDeletes, 1)
	}
}
