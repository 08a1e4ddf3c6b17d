// Package http is the web-delivery harness over the ledger store: routing,
// session cookies, server-rendered views, and CSV up/download. All data and
// query semantics live in internal/store; this package only translates
// requests and presents results.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/events"
	"ledger/internal/log"
	"ledger/internal/store"
	appweb "ledger/web"
)

type ctxKey string

const accountContextKey ctxKey = "account"

// sessionAccount is the authenticated identity attached to a request.
type sessionAccount struct {
	ID   int64
	Name string
}

type Server struct {
	http.Server
	store     *store.Store
	publisher *events.Publisher
	sessions  *Sessions
	templates *template.Template
	logger    *log.Logger

	rateLimiter   *rateLimiter
	categoryCache *cache.LRU[[]string]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, st *store.Store, pub *events.Publisher, sessions *Sessions, logger *log.Logger) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:            st,
		publisher:        pub,
		sessions:         sessions,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      newRateLimiter(),
		categoryCache:    cache.New[[]string](200, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	go s.startCacheCleanup()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /register", s.withMiddleware(s.handleRegisterForm))
	mux.HandleFunc("POST /register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("GET /login", s.withMiddleware(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("GET /logout", s.withMiddleware(s.handleLogout))

	mux.HandleFunc("GET /{$}", s.withMiddleware(s.requireAccount(s.handleIndex)))
	mux.HandleFunc("GET /add", s.withMiddleware(s.requireAccount(s.handleAddForm)))
	mux.HandleFunc("POST /add", s.withMiddleware(s.requireAccount(s.handleAdd)))
	mux.HandleFunc("GET /edit/{id}", s.withMiddleware(s.requireAccount(s.handleEditForm)))
	mux.HandleFunc("POST /edit/{id}", s.withMiddleware(s.requireAccount(s.handleEdit)))
	mux.HandleFunc("POST /delete/{id}", s.withMiddleware(s.requireAccount(s.handleDelete)))
	mux.HandleFunc("GET /dashboard", s.withMiddleware(s.requireAccount(s.handleDashboard)))
	mux.HandleFunc("GET /export", s.withMiddleware(s.requireAccount(s.handleExport)))
	mux.HandleFunc("GET /import", s.withMiddleware(s.requireAccount(s.handleImportForm)))
	mux.HandleFunc("POST /import", s.withMiddleware(s.requireAccount(s.handleImport)))

	return s, nil
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		reqLogger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, reqLogger)
		r = r.WithContext(ctx)

		// Rate limit mutating requests per client IP.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLogger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// requireAccount resolves the session cookie to an account, redirecting
// anonymous requests to the login page.
func (s *Server) requireAccount(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		accountID, name, err := s.sessions.Verify(cookie.Value)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Session verification failed", log.FieldError, err.Error())
			s.sessions.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, sessionAccount{ID: accountID, Name: name})
		next(w, r.WithContext(ctx))
	}
}

func accountFromContext(ctx context.Context) (sessionAccount, bool) {
	acc, ok := ctx.Value(accountContextKey).(sessionAccount)
	return acc, ok
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

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// categoriesFor returns the account's category list through the cache.
func (s *Server) categoriesFor(ctx context.Context, accountID int64) ([]string, error) {
	key := strconv.FormatInt(accountID, 10)
	if cats, ok := s.categoryCache.Get(key); ok {
		return cats, nil
	}

	cats, err := s.store.ListCategories(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.categoryCache.Set(key, cats)
	return cats, nil
}

// invalidateCategories drops the cached list after any entry write.
func (s *Server) invalidateCategories(accountID int64) {
	s.categoryCache.Delete(strconv.FormatInt(accountID, 10))
}

// publishEntryEvent forwards a lifecycle event to the optional publisher.
func (s *Server) publishEntryEvent(ctx context.Context, event string, accountID, entryID int64, kind core.Kind, amountCents int64) {
	s.publisher.PublishEntryEvent(ctx, event, accountID, entryID, kind, amountCents)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.categoryCache.CleanExpired(); n > 0 {
				s.logger.Debug("Cache cleanup completed", "entries_removed", n)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
