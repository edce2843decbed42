package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"balance/internal/log"
	"balance/internal/session"
	"balance/internal/tracker"
)

// SessionCookie names the cookie that binds a browser to its ledger.
const SessionCookie = "balance_session"

// appMetrics tracks application counters exposed on /metrics.
type appMetrics struct {
	uptime              time.Time
	transactionsAdded   int64
	transactionsRemoved int64
	validationErrors    int64
	sessionsCreated     int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// activeSession returns the session named by the request cookie, or nil.
// It never allocates one, so reads from cookieless clients cannot push live
// sessions out of the table.
func (s *Server) activeSession(r *http.Request) *session.Session {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	sess, err := s.sessions.Get(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return sess
}

// reader returns the tracker a read should render: the caller's own, or the
// shared empty one when the caller has no session.
func (s *Server) reader(r *http.Request) *tracker.Tracker {
	if sess := s.activeSession(r); sess != nil {
		return sess.Tracker
	}
	return s.blank
}

// startSession returns the caller's session, starting a new one (and setting
// the cookie) when the request carries no valid session. Only mutations
// call it.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created, err := s.sessions.Resolve(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if created {
		atomic.AddInt64(&s.appMetrics.sessionsCreated, 1)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		log.FromContext(r.Context()).WithComponent(log.ComponentSession).DebugContext(r.Context(), "Session started",
			log.FieldSessionID, sess.ID)
	}
	return sess, nil
}

// pageData is what the templates render.
type pageData struct {
	tracker.View
	Symbol string
	// OOB marks the summary for an out-of-band swap in partial responses.
	OOB bool
}

// render executes a template into a buffer so a failing template never
// leaves a half-written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// parseID parses a transaction ID from a path segment. ok is false when the
// value cannot name any transaction.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sanitizeInput removes control characters (except tab, newline and carriage
// return) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
