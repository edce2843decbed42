// Package http serves the balance web page: one ledger per browser session,
// rendered server side and refreshed in place with HTMX partials.
package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"balance/internal/core"
	"balance/internal/events"
	"balance/internal/ledger"
	"balance/internal/log"
	"balance/internal/middleware/ratelimit"
	"balance/internal/middleware/security"
	"balance/internal/middleware/trace"
	"balance/internal/session"
	"balance/internal/tracker"
	appweb "balance/web"
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	Logger             *log.Logger
	Formatter          core.Formatter
	RateLimitPerMinute int
	// Ready reports whether the ledger backend can serve requests.
	Ready func(ctx context.Context) error
	// EventStats exposes event publishing counters on /metrics.
	EventStats func() events.Stats
}

type Server struct {
	http.Server
	templates *template.Template
	sessions  *session.Manager
	// blank renders visitors that have no session yet. It is never mutated.
	blank  *tracker.Tracker
	format    core.Formatter
	logger    *log.Logger
	ready     func(ctx context.Context) error
	events    func() events.Stats

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, sessions *session.Manager, opts Options) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	format := opts.Formatter
	if format.Symbol == "" {
		format = core.NewFormatter("")
	}

	t, err := appweb.ParseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:        t,
		sessions:         sessions,
		blank:            tracker.New("", ledger.New(), tracker.WithFormatter(format)),
		format:           format,
		logger:           logger.WithComponent(log.ComponentHTTP),
		ready:            opts.Ready,
		events:           opts.EventStats,
		securityDetector: security.NewDetector(),
		appMetrics:       newAppMetrics(),
	}
	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rl)
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = s.securityDetector.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	static := http.StripPrefix("/static/", http.FileServer(http.FS(appweb.Static())))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)

	// UI partials
	mux.HandleFunc("GET /ui/ledger", s.handleLedgerPartial)

	mux.HandleFunc("GET /api/ledger", s.handleLedgerJSON)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorFragment(http.StatusTooManyRequests, "Too many requests. Please try again shortly.").
		Retarget("#form-error", "innerHTML").
		Write(w)
}
