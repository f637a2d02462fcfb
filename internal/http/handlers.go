package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/attachments"
	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// pageData is handed to every page and partial template.
type pageData struct {
	Title    string
	Tab      app.Tab
	Tabs     []app.Tab
	State    app.State
	View     app.ViewModel
	Flash    *app.FlashMessage
	SignedIn bool

	// Login page
	Mode  string
	Email string
	Error string

	// Entry form
	TxType     core.TxType
	Categories []core.Category
	Today      string

	// Settings page
	Attachments []core.Attachment
	Usage       int64
	Limits      attachments.Limits
	Report      *importReportView
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).Round(time.Second).String(),
	})
}

// handleReady runs every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for _, c := range s.deps.Checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed",
				"check", c.Name,
				log.FieldError, err.Error())
			continue
		}
		checks[c.Name] = "ok"
	}

	snap := s.deps.Feed.Current()
	checks["feed"] = fmt.Sprintf("version %d, %d subscribers", snap.Version, s.deps.Feed.Subscribers())

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()
	sessionStats := s.deps.Sessions.Cache().Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_in_flight", "gauge", "Requests being served", traceMetrics.InFlight)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)

	metric("transactions_created_total", "counter", "Transactions created from the form", s.metrics.transactionsCreated.Load())
	metric("transactions_deleted_total", "counter", "Transactions deleted", s.metrics.transactionsDeleted.Load())
	metric("transactions_imported_total", "counter", "Transactions imported from backups", s.metrics.transactionsImported.Load())
	metric("attachments_uploaded_total", "counter", "PDF attachments uploaded", s.metrics.attachmentsUploaded.Load())
	metric("sign_ins_total", "counter", "Successful sign-ins and sign-ups", s.metrics.signIns.Load())

	metric("ledger_snapshot_version", "gauge", "Version of the latest ledger snapshot", s.deps.Feed.Current().Version)
	metric("feed_subscribers", "gauge", "Open event streams", s.deps.Feed.Subscribers())
	metric("session_states", "gauge", "Session states held in memory", sessionStats.Size)

	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("cross_origin_blocked_total", "counter", "State-changing requests rejected for their origin", securityMetrics.CrossOriginBlocked)

	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.metrics.uptime).Seconds()))
}

// render executes a full page. The page is rendered into a buffer first so
// a template error never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := s.templates[page]
	if !ok {
		s.templateError(w, r, page, fmt.Errorf("templates not loaded"))
		return
	}
	data.Tabs = app.Tabs
	if data.Title == "" {
		data.Title = data.Tab.Label()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.templateError(w, r, page, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes one named block of partials.html into b.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data pageData) {
	if s.partials == nil {
		s.templateError(w, r, name, fmt.Errorf("templates not loaded"))
		return
	}
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.templateError(w, r, name, err)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

func (s *Server) templateError(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
		log.FieldError, err.Error(),
		log.FieldOperation, log.OpRender,
		"template", name)
	http.Error(w, "Erro ao montar a página.", http.StatusInternalServerError)
}

// pageState brings the session state up to date with the identity and the
// latest ledger snapshot, applies actions, and takes the pending flash.
func (s *Server) pageState(r *http.Request, actions ...app.Action) (app.State, *app.FlashMessage) {
	sess := sessionFrom(r.Context())
	snap := s.deps.Feed.Current()
	if snap.Version == 0 {
		if fresh, err := s.deps.Feed.Refresh(r.Context()); err == nil {
			snap = fresh
		} else {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load ledger snapshot",
				log.FieldError, err.Error(),
				log.FieldOperation, log.OpRefresh)
		}
	}
	base := []app.Action{
		app.IdentityChanged{Identity: sess.identity, SignedIn: true},
		app.SnapshotReceived{Snapshot: snap},
	}
	s.deps.Sessions.Dispatch(sess.token, append(base, actions...)...)
	flash := s.deps.Sessions.TakeFlash(sess.token)
	return s.deps.Sessions.Get(sess.token), flash
}

func (s *Server) newPageData(st app.State, flash *app.FlashMessage) pageData {
	return pageData{
		Tab:      st.Tab,
		State:    st,
		View:     app.View(st),
		Flash:    flash,
		SignedIn: st.SignedIn,
	}
}

type sessionKey struct{}

type session struct {
	token    string
	identity auth.Identity
}

func sessionFrom(ctx context.Context) session {
	sess, _ := ctx.Value(sessionKey{}).(session)
	return sess
}
