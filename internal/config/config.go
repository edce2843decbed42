// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"balance/internal/core"
	"balance/internal/log"
	"balance/internal/storage"
)

var ledgerBackends = []string{"memory", "sqlite"}

type Config struct {
	// HTTP server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Sessions
	SessionTTL           time.Duration
	SessionMax           int
	SessionSweepInterval time.Duration

	// Ledger storage
	LedgerBackend string
	SQLiteDSN     string

	// AMQP. An empty URL disables publishing.
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Display
	CurrencySymbol string

	// malformed holds env values that could not be parsed. The default was
	// used instead; Validate reports them.
	malformed []string
}

// Load reads the environment. Unset variables take their defaults.
func Load() *Config {
	c := &Config{}
	c.Port = c.envString("PORT", "8081")
	c.RateLimitPerMinute = c.envInt("RATE_LIMIT_PER_MINUTE", 60)

	c.LogLevel = c.envString("LOG_LEVEL", "info")
	c.LogFormat = c.envString("LOG_FORMAT", "text")

	c.SessionTTL = c.envDuration("SESSION_TTL", 12*time.Hour)
	c.SessionMax = c.envInt("SESSION_MAX", 1000)
	c.SessionSweepInterval = c.envDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute)

	c.LedgerBackend = c.envString("LEDGER_BACKEND", "memory")
	c.SQLiteDSN = c.envString("SQLITE_DSN", storage.DefaultDSN)

	c.AMQPURL = c.envString("AMQP_URL", "")
	c.AMQPExchange = c.envString("AMQP_EXCHANGE", "balance")
	c.AMQPRoutingKey = c.envString("AMQP_ROUTING_KEY", "ledger.events")

	c.CurrencySymbol = c.envString("CURRENCY_SYMBOL", core.DefaultCurrencySymbol)
	return c
}

func (c *Config) envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		c.malformed = append(c.malformed, fmt.Sprintf("invalid %s '%s': must be a whole number", key, v))
		return def
	}
	return i
}

func (c *Config) envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.malformed = append(c.malformed, fmt.Sprintf("invalid %s '%s': must be a duration such as 30m", key, v))
		return def
	}
	return d
}

// problems collects validation failures.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	p := problems(slices.Clone(c.malformed))
	c.validateServer(&p)
	c.validateLogging(&p)
	c.validateSessions(&p)
	c.validateStorage(&p)
	c.validateAMQP(&p)
	if strings.TrimSpace(c.CurrencySymbol) == "" {
		p.addf("currency symbol cannot be empty")
	}

	if len(p) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(p, "\n- "))
	}
	return nil
}

func (c *Config) validateServer(p *problems) {
	port, err := strconv.Atoi(c.Port)
	switch {
	case err != nil:
		p.addf("invalid port '%s': must be a number", c.Port)
	case port < 1 || port > 65535:
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.RateLimitPerMinute < 1 {
		p.addf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute)
	}
}

func (c *Config) validateLogging(p *problems) {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		p.addf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		p.addf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat)
	}
}

func (c *Config) validateSessions(p *problems) {
	if c.SessionTTL < time.Minute {
		p.addf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL)
	}
	if c.SessionMax < 1 {
		p.addf("invalid session max %d: must be at least 1", c.SessionMax)
	}
	switch {
	case c.SessionSweepInterval < time.Second:
		p.addf("invalid session sweep interval %v: must be at least 1 second", c.SessionSweepInterval)
	case c.SessionSweepInterval > 24*time.Hour:
		p.addf("invalid session sweep interval %v: must be at most 24 hours", c.SessionSweepInterval)
	}
}

func (c *Config) validateStorage(p *problems) {
	if !slices.Contains(ledgerBackends, c.LedgerBackend) {
		p.addf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, ledgerBackends)
	}
	if c.LedgerBackend == "sqlite" && c.SQLiteDSN == "" {
		p.addf("SQLite DSN cannot be empty when using sqlite backend")
	}
}

func (c *Config) validateAMQP(p *problems) {
	if !c.AMQPEnabled() {
		return
	}
	u, err := url.Parse(c.AMQPURL)
	switch {
	case err != nil:
		p.addf("invalid AMQP URL '%s': %v", c.AMQPURL, err)
	case u.Scheme != "amqp" && u.Scheme != "amqps":
		p.addf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPRoutingKey == "" {
		p.addf("AMQP routing key cannot be empty when AMQP URL is provided")
	}
}

// AMQPEnabled reports whether ledger events go to a broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}
