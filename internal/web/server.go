// Package web provides the HTTP server and handlers for the voucher dashboard.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/config"
	"github.com/JonMunkholm/voucherdash/internal/core"
	"github.com/JonMunkholm/voucherdash/internal/session"
	"github.com/JonMunkholm/voucherdash/internal/voucher"
	mw "github.com/JonMunkholm/voucherdash/internal/web/middleware"
)

// Backend is the part of the voucher API the handlers call.
// *backend.Client implements it.
type Backend interface {
	Login(ctx context.Context, in backend.LoginInput) (string, error)
	ListVouchers(ctx context.Context, credential string, p voucher.ListParams) (voucher.Page, error)
	GetVoucher(ctx context.Context, credential, id string) (voucher.Voucher, error)
	CreateVoucher(ctx context.Context, credential string, p voucher.Payload) error
	UpdateVoucher(ctx context.Context, credential, id string, p voucher.Payload) error
	DeleteVoucher(ctx context.Context, credential, id string) error
	ExportVouchers(ctx context.Context, credential string) (*backend.Export, error)
}

var _ Backend = (*backend.Client)(nil)

// Server is the HTTP server for the dashboard.
type Server struct {
	cfg      *config.Config
	api      Backend
	imports  *core.Service
	sessions *session.Manager
	limiters []*rateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, api Backend, imports *core.Service) *Server {
	s := &Server{
		cfg:      cfg,
		api:      api,
		imports:  imports,
		sessions: session.NewManager(cfg.Session.CookieSecure, cfg.Session.MaxAge),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/vouchers", http.StatusSeeOther)
	})

	// Auth
	s.router.Get("/login", s.handleLoginPage)
	s.router.Post("/login", s.handleLogin)
	s.router.Post("/logout", s.handleLogout)

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(true))

		r.Get("/vouchers", s.handleVoucherList)
		r.Get("/vouchers/new", s.handleVoucherNew)
		r.Post("/vouchers", s.handleVoucherCreate)
		r.Get("/vouchers/{id}/edit", s.handleVoucherEdit)
		r.Post("/vouchers/{id}", s.handleVoucherUpdate)
		r.Post("/vouchers/{id}/delete", s.handleVoucherDelete)
		r.Get("/vouchers/import", s.handleImportPage)
	})

	// Downloads answer 401 instead of redirecting
	s.router.With(mw.RequireSession(false)).Get("/vouchers/export", s.handleExport)

	// Import API
	s.router.Route("/api/import", func(r chi.Router) {
		r.Use(mw.RequireSession(false))
		if s.cfg.Rate.Enabled {
			r.Use(s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware)
		}

		r.Post("/", s.handleImportNew)
		r.Get("/history", s.handleImportHistory)
		r.Get("/queue", s.handleImportQueue)

		r.Route("/{flowID}", func(r chi.Router) {
			r.Get("/", s.handleImportGet)
			r.Post("/file", s.handleImportFile)
			r.Delete("/file", s.handleImportClear)
			r.Post("/submit", s.handleImportSubmit)
			r.Post("/cancel", s.handleImportCancel)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps long polls alive
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Pages carry their own inline styles and the import script
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
// It is stopped by Shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1, // consume one token
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// errRateLimited maps to RATE001.
var errRateLimited = errors.New("rate limit exceeded")

// middleware returns an HTTP middleware that rate limits by client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "path", r.URL.Path, "error", err)
	}
}
