package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/attachments"
	"tesouraria/internal/auth"
	"tesouraria/internal/live"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
	"tesouraria/internal/middleware/ratelimit"
	"tesouraria/internal/middleware/security"
	"tesouraria/internal/middleware/trace"
	"tesouraria/internal/services"
	appweb "tesouraria/web"
)

// pages are rendered through layout.html; each page file defines "content".
var pages = []string{"login", "dashboard", "nova", "historico", "config"}

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the services the handlers work with. Attachments may be nil, in
// which case the attachment routes answer 404.
type Deps struct {
	Auth         *auth.Service
	Sessions     *app.Sessions
	Feed         *live.Feed
	Transactions *services.TransactionService
	Attachments  *attachments.Service
	Prefs        *localstore.Store

	Checks             []ReadinessCheck
	RateLimitPerMinute int
	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool
	Logger        *log.Logger
}

type appMetrics struct {
	transactionsCreated  atomic.Int64
	transactionsDeleted  atomic.Int64
	transactionsImported atomic.Int64
	attachmentsUploaded  atomic.Int64
	signIns              atomic.Int64
	uptime               time.Time
}

type Server struct {
	http.Server
	deps      Deps
	logger    *log.Logger
	templates map[string]*template.Template
	partials  *template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(limitCfg),
		detector: security.NewDetector(logger),
		metrics:  &appMetrics{uptime: time.Now()},
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	if err := s.loadTemplates(); err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)

	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireSession(security.NoStore(h)))
	}
	tagged := func(component string, h http.HandlerFunc) http.HandlerFunc {
		return log.ComponentMiddleware(component)(h).ServeHTTP
	}

	private("GET /{$}", s.handleDashboard)
	private("GET /ui/dashboard", s.handleDashboardPartial)

	private("GET /nova", s.handleNewTransactionPage)
	private("POST /transactions", s.handleCreateTransaction)
	private("GET /ui/categories", s.handleCategoryOptions)
	private("GET /historico", s.handleHistory)
	private("GET /ui/history", s.handleHistoryPartial)
	private("DELETE /transactions/{id}/delete", s.handleDeleteTransaction)
	private("POST /transactions/{id}/delete", s.handleDeleteTransaction)

	private("GET /config", s.handleConfig)
	private("POST /config/dark-mode", s.handleDarkMode)
	private("GET /export", s.handleExport)
	private("POST /import", s.handleImport)

	private("POST /attachments", tagged(log.ComponentAttachments, s.handleUploadAttachment))
	private("GET /ui/attachments", tagged(log.ComponentAttachments, s.handleAttachmentList))
	private("GET /attachments/{id}", tagged(log.ComponentAttachments, s.handleDownloadAttachment))
	private("DELETE /attachments/{id}/delete", tagged(log.ComponentAttachments, s.handleDeleteAttachment))
	private("POST /attachments/{id}/delete", tagged(log.ComponentAttachments, s.handleDeleteAttachment))

	private("GET /events", tagged(log.ComponentFeed, s.handleEvents))
}

func (s *Server) loadTemplates() error {
	base, err := template.New("layout.html").Funcs(templateFuncs()).
		ParseFS(appweb.TemplatesFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	set := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := base.Clone()
		if err != nil {
			return fmt.Errorf("clone layout for %s: %w", page, err)
		}
		if _, err := t.ParseFS(appweb.TemplatesFS, "templates/"+page+".html"); err != nil {
			return fmt.Errorf("parse %s: %w", page, err)
		}
		set[page] = t
	}
	s.partials = base
	s.templates = set
	return nil
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)

	msg := "Muitas requisições. Tente novamente em instantes."
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	http.Error(w, msg, http.StatusTooManyRequests)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
