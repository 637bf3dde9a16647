package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"libreria/internal/auth"
	"libreria/internal/log"
	"libreria/internal/middleware/ratelimit"
	"libreria/internal/middleware/security"
	"libreria/internal/middleware/trace"
	"libreria/internal/services"
	"libreria/internal/sheets"
	appweb "libreria/web"
)

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	auth      *auth.Authenticator
	health    sheets.Pinger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	now       func() time.Time

	shutdownOnce sync.Once
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Ledger *services.LedgerService
	Auth   *auth.Authenticator
	// Health is pinged by /readyz; nil means always ready.
	Health                 sheets.Pinger
	LoginAttemptsPerMinute int
	// TrustedProxies are extra CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	Logger         *log.Logger
	// Now defaults to time.Now; the dashboard "today" is its local date.
	Now func() time.Time
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, deps Deps) (*Server, error) {
	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trust proxy: %w", err)
		}
	}

	s := &Server{
		templates: t,
		ledger:    deps.Ledger,
		auth:      deps.Auth,
		health:    deps.Health,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.LoginAttemptsPerMinute}),
		detector:  detector,
		logger:    logger.WithComponent(log.ComponentHTTP),
		now:       now,
	}

	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /{$}", security.NoStore(http.HandlerFunc(s.handleIndex)))
	mux.Handle("POST /login", s.limiter.Middleware(s.detector.ExtractClientIP, s.handleLoginLimited)(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("POST /records", s.requireAuth(s.handleCreateRecord))
	mux.HandleFunc("POST /records/delete", s.requireAuth(s.handleDeleteRecord))
	mux.HandleFunc("GET /export.xlsx", s.requireAuth(s.handleExport))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	var h http.Handler = mux
	h = headers.Middleware(h)
	h = tracer.Middleware(h)
	h = s.detector.Middleware(h)
	h = log.Middleware(s.logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// authedHandler receives the resolved session explicitly.
type authedHandler func(http.ResponseWriter, *http.Request, auth.Authenticated)

// requireAuth resolves the session and sends unauthenticated callers to
// the login page.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch sess := s.auth.Resolve(r).(type) {
		case auth.Authenticated:
			next(w, r, sess)
		default:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
	}
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
