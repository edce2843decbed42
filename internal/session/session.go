// Package session maps browser sessions to their trackers. Every session owns
// exactly one ledger for as long as it stays active; an expired or evicted
// session takes its ledger with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"balance/internal/cache"
	"balance/internal/ledger"
	"balance/internal/log"
	"balance/internal/tracker"
)

var ErrNotFound = errors.New("session not found")

// Session is one active browser session.
type Session struct {
	ID        string
	Tracker   *tracker.Tracker
	CreatedAt time.Time
}

// TrackerFactory builds the tracker of a new session around its book.
type TrackerFactory func(id string, book ledger.Book) *tracker.Tracker

// Config bounds the number and lifetime of sessions.
type Config struct {
	TTL         time.Duration
	MaxSessions int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		TTL:         12 * time.Hour,
		MaxSessions: 1000,
	}
}

// Manager keeps sessions in an LRU cache with sliding expiry.
type Manager struct {
	store      ledger.Store
	sessions   *cache.LRUCache[*Session]
	newTracker TrackerFactory
	logger     *log.Logger
}

// NewManager creates a manager that opens books from store.
func NewManager(store ledger.Store, cfg Config, newTracker TrackerFactory, logger *log.Logger) *Manager {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if newTracker == nil {
		newTracker = func(id string, book ledger.Book) *tracker.Tracker {
			return tracker.New(id, book)
		}
	}
	if logger == nil {
		logger = log.Discard()
	}
	m := &Manager{
		store:      store,
		sessions:   cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.TTL),
		newTracker: newTracker,
		logger:     logger.WithComponent(log.ComponentSession),
	}
	m.sessions.OnEvict(m.release)
	return m
}

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// Get returns an active session and refreshes its expiry.
func (m *Manager) Get(_ context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Create starts a session with an empty ledger.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := NewID()
	book, err := m.store.Open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open ledger for session: %w", err)
	}
	s := &Session{
		ID:        id,
		Tracker:   m.newTracker(id, book),
		CreatedAt: time.Now(),
	}
	m.sessions.Set(id, s)
	m.logger.DebugContext(ctx, "Session created", log.FieldSessionID, id)
	return s, nil
}

// Resolve returns the session for id, or a new one when id is unknown or
// expired. created reports which happened.
func (m *Manager) Resolve(ctx context.Context, id string) (s *Session, created bool, err error) {
	if id != "" {
		if s, err := m.Get(ctx, id); err == nil {
			return s, false, nil
		}
	}
	s, err = m.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Drop ends a session and discards its ledger. Unknown IDs are ignored.
func (m *Manager) Drop(_ context.Context, id string) {
	m.sessions.Delete(id)
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// CleanExpired drops every session past its TTL. It implements cache.Cleaner.
func (m *Manager) CleanExpired() int {
	return m.sessions.CleanExpired()
}

// release closes the tracker before dropping its book so a request still
// holding the session cannot write rows under a dead ID.
func (m *Manager) release(id string, s *Session) {
	if s != nil && s.Tracker != nil {
		s.Tracker.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Drop(ctx, id); err != nil {
		m.logger.Error("Failed to drop session ledger", log.FieldSessionID, id, log.FieldError, err)
		return
	}
	m.logger.Debug("Session released", log.FieldSessionID, id)
}
