// Package ratelimit throttles ledger mutations per client IP with a token
// bucket: a client may burst up to the per-minute budget, and tokens refill
// evenly across the minute.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"balance/internal/cache"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	// MaxClients bounds the number of tracked IPs. The least recently seen
	// client is dropped first.
	MaxClients int
	// IdleTimeout forgets clients that sent nothing for this long.
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	// MutatingOnly limits POST, PUT, PATCH and DELETE and lets reads through.
	MutatingOnly bool
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		MaxClients:        10000,
		IdleTimeout:       10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
		MutatingOnly:      true,
	}
}

// Limiter holds one token bucket per client IP.
type Limiter struct {
	cfg     Config
	every   rate.Limit
	clients *cache.LRUCache[*rate.Limiter]
	now     func() time.Time
	hits    int64

	mu   sync.Mutex // serializes bucket creation
	stop chan struct{}
	once sync.Once
}

// NewLimiter starts a limiter and its cleanup loop. Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		cfg:     cfg,
		every:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		clients: cache.NewLRUCache[*rate.Limiter](cfg.MaxClients, cfg.IdleTimeout),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *Limiter) bucket(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.clients.Get(clientIP); ok {
		return b
	}
	b := rate.NewLimiter(rl.every, rl.cfg.RequestsPerMinute)
	rl.clients.Set(clientIP, b)
	return b
}

// Reserve takes one token for clientIP. When none is available it returns
// false and how long until one is.
func (rl *Limiter) Reserve(clientIP string) (bool, time.Duration) {
	now := rl.now()
	r := rl.bucket(clientIP).ReserveN(now, 1)
	if !r.OK() {
		atomic.AddInt64(&rl.hits, 1)
		return false, time.Minute
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		atomic.AddInt64(&rl.hits, 1)
		return false, wait
	}
	return true, 0
}

// Allow reports whether a request from clientIP may proceed.
func (rl *Limiter) Allow(clientIP string) bool {
	ok, _ := rl.Reserve(clientIP)
	return ok
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.clients.CleanExpired()
		case <-rl.stop:
			return
		}
	}
}

// ActiveClients returns the number of tracked clients.
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Size()
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.hits),
		ClientCount: int64(rl.ActiveClients()),
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// retryAfterSeconds rounds wait up to whole seconds, at least one.
func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}

// Middleware rejects requests over budget with 429 and Retry-After. onLimit
// writes the body; nil falls back to a plain text error.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.cfg.MutatingOnly && !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Reserve(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
