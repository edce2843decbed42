package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"

	"balance/internal/core"
	"balance/internal/log"
	"balance/internal/session"
	"balance/internal/tracker"
)

// handleIndex renders the full page for the caller's ledger.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, s.reader(r), http.StatusOK)
}

// handleCreateTransaction validates the submitted draft and adds it to the
// session ledger.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}
	logger := log.FromContext(r.Context())

	fields, err := ReadRequestFields(w, r)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to parse transaction request",
			log.FieldSessionID, sess.ID,
			log.FieldError, err.Error())
		BadRequest("Invalid request body").Write(w)
		return
	}

	if _, err := sess.Tracker.Submit(r.Context(), fields.DraftInput()); err != nil {
		if core.IsValidationError(err) {
			atomic.AddInt64(&s.appMetrics.validationErrors, 1)
			logger.InfoContext(r.Context(), "Transaction rejected",
				log.FieldSessionID, sess.ID,
				log.FieldError, err.Error())
			s.writeValidationError(w, r, sess.Tracker, core.UserMessage(err))
			return
		}
		if errors.Is(err, tracker.ErrClosed) {
			s.sessionEnded(w, r, sess.ID)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to add transaction",
			log.FieldSessionID, sess.ID,
			log.FieldError, err.Error())
		InternalError("Could not save the transaction. Please try again.").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.transactionsAdded, 1)
	s.writeChanged(w, r, sess.Tracker, true)
}

// handleDeleteTransaction removes a transaction by ID. Unknown or malformed
// IDs, and callers without a session, leave every ledger unchanged and still
// answer with the current state.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sess := s.activeSession(r)
	if sess == nil {
		s.writeChanged(w, r, s.blank, false)
		return
	}

	removed := false
	if id, valid := parseID(r.PathValue("id")); valid {
		var err error
		removed, err = sess.Tracker.Delete(r.Context(), id)
		if errors.Is(err, tracker.ErrClosed) {
			s.sessionEnded(w, r, sess.ID)
			return
		}
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to remove transaction",
				log.FieldSessionID, sess.ID,
				log.FieldTransactionID, id,
				log.FieldError, err.Error())
			InternalError("Could not delete the transaction. Please try again.").Write(w)
			return
		}
	}
	if removed {
		atomic.AddInt64(&s.appMetrics.transactionsRemoved, 1)
	}
	s.writeChanged(w, r, sess.Tracker, false)
}

// handleLedgerPartial returns the list and an out-of-band summary.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	view, err := s.reader(r).View(r.Context())
	if err != nil {
		s.viewFailed(w, r, err)
		return
	}
	body, err := s.render("ledger", s.page(view, true))
	if err != nil {
		s.templateFailed(w, r, "ledger", err)
		return
	}
	NewResponse().HTML(body).Write(w)
}

// handleLedgerJSON returns the session ledger and totals as JSON.
func (s *Server) handleLedgerJSON(w http.ResponseWriter, r *http.Request) {
	t := s.reader(r)
	view, err := t.View(r.Context())
	if err != nil {
		s.viewFailed(w, r, err)
		return
	}
	items, err := t.Transactions(r.Context())
	if err != nil {
		s.viewFailed(w, r, err)
		return
	}
	NewResponse().JSON(newLedgerSnapshot(view, items)).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    durafmt.Parse(time.Since(s.appMetrics.uptime).Round(time.Second)).LimitFirstN(2).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["ledger_backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["ledger_backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ledger_backend"] = "ok"
		}
	}

	checks["sessions"] = map[string]int{"active": s.sessions.Len()}

	NewResponse().
		Status(httpStatus).
		JSON(map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    checks,
		}).
		Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	w.WriteHeader(http.StatusOK)

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Total number of 5xx responses", traceMetrics.ServerErrors)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)

	counter("transactions_added_total", "Total number of transactions added", atomic.LoadInt64(&s.appMetrics.transactionsAdded))
	counter("transactions_removed_total", "Total number of transactions removed", atomic.LoadInt64(&s.appMetrics.transactionsRemoved))
	counter("validation_errors_total", "Total number of rejected submissions", atomic.LoadInt64(&s.appMetrics.validationErrors))

	gauge("sessions_active", "Sessions currently holding a ledger", int64(s.sessions.Len()))
	counter("sessions_created_total", "Total number of sessions started", atomic.LoadInt64(&s.appMetrics.sessionsCreated))

	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)

	counter("security_suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	counter("security_invalid_ip_attempts_total", "Total invalid client IP headers", securityMetrics.InvalidIPAttempts)

	if s.events != nil {
		st := s.events()
		counter("events_published_total", "Ledger events published", st.Published)
		counter("events_failed_total", "Ledger events that failed to publish", st.Failed)
		counter("events_dropped_total", "Ledger events dropped on a full queue", st.Dropped)
	}

	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

// writeChanged answers a successful mutation in the shape the client expects.
func (s *Server) writeChanged(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, added bool) {
	view, err := t.View(r.Context())
	if err != nil {
		s.viewFailed(w, r, err)
		return
	}

	switch {
	case isHTMX(r):
		body, err := s.render("ledger", s.page(view, true))
		if err != nil {
			s.templateFailed(w, r, "ledger", err)
			return
		}
		resp := NewResponse().LedgerChanged(view.Count, view.Balance)
		if added {
			resp.FormReset()
		}
		resp.HTML(body).Write(w)
	case wantsJSON(r):
		items, err := t.Transactions(r.Context())
		if err != nil {
			s.viewFailed(w, r, err)
			return
		}
		NewResponse().JSON(newLedgerSnapshot(view, items)).Write(w)
	default:
		NewResponse().Redirect("/").Write(w)
	}
}

// writeValidationError reports a rejected draft. The ledger is unchanged.
func (s *Server) writeValidationError(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, msg string) {
	switch {
	case isHTMX(r):
		Unprocessable(msg).Retarget("#form-error", "innerHTML").Write(w)
	case wantsJSON(r):
		NewResponse().
			Status(http.StatusUnprocessableEntity).
			JSON(map[string]string{"error": msg}).
			Write(w)
	default:
		s.writePage(w, r, t, http.StatusUnprocessableEntity)
	}
}

// sessionEnded answers a mutation that raced the end of its session. The
// cookie is cleared so the next request starts over.
func (s *Server) sessionEnded(w http.ResponseWriter, r *http.Request, id string) {
	log.FromContext(r.Context()).WithComponent(log.ComponentSession).InfoContext(r.Context(), "Mutation on ended session",
		log.FieldSessionID, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	const msg = "Your session has ended. Reload the page to start again."
	if wantsJSON(r) {
		NewResponse().Status(http.StatusGone).JSON(map[string]string{"error": msg}).Write(w)
		return
	}
	ErrorFragment(http.StatusGone, msg).Retarget("#form-error", "innerHTML").Write(w)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, status int) {
	view, err := t.View(r.Context())
	if err != nil {
		s.viewFailed(w, r, err)
		return
	}
	body, err := s.render("index.html", s.page(view, false))
	if err != nil {
		s.templateFailed(w, r, "index.html", err)
		return
	}
	NewResponse().Status(status).HTML(body).Write(w)
}

func (s *Server) page(view tracker.View, oob bool) pageData {
	return pageData{View: view, Symbol: s.format.Symbol, OOB: oob}
}

// sessionOrFail resolves the caller's session, writing a 500 when no session
// can be started.
func (s *Server) sessionOrFail(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.startSession(w, r)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to resolve session",
			log.FieldError, err.Error())
		InternalError("Could not start a session. Please try again.").Write(w)
		return nil, false
	}
	return sess, true
}

func (s *Server) viewFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read ledger",
		log.FieldError, err.Error())
	InternalError("Could not load the ledger. Please try again.").Write(w)
}

func (s *Server) templateFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template render error",
		"template", name,
		log.FieldError, err.Error())
	InternalError("Template rendering failed").Write(w)
}

// ledgerSnapshot is the JSON form of a ledger.
type ledgerSnapshot struct {
	Transactions []transactionJSON `json:"transactions"`
	Totals       totalsJSON        `json:"totals"`
	Count        int               `json:"count"`
	Display      displayJSON       `json:"display"`
}

type transactionJSON struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        core.Kind `json:"kind"`
}

type totalsJSON struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Balance  string `json:"balance"`
}

type displayJSON struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Balance  string `json:"balance"`
}

func newLedgerSnapshot(view tracker.View, items []core.Transaction) ledgerSnapshot {
	snap := ledgerSnapshot{
		Transactions: make([]transactionJSON, 0, len(items)),
		Totals: totalsJSON{
			Income:   view.Totals.Income.StringFixed(2),
			Expenses: view.Totals.Expenses.StringFixed(2),
			Balance:  view.Totals.Balance.StringFixed(2),
		},
		Count: len(items),
		Display: displayJSON{
			Income:   view.Income,
			Expenses: view.Expenses,
			Balance:  view.Balance,
		},
	}
	for _, tx := range items {
		snap.Transactions = append(snap.Transactions, transactionJSON{
			ID:          tx.ID,
			Description: tx.Description,
			Amount:      tx.Amount.String(),
			Kind:        tx.Kind,
		})
	}
	return snap
}
