// Package backend selects where session ledgers live: process memory or a
// SQLite database that only holds rows for live sessions.
package backend

import (
	"context"
	"fmt"

	"balance/internal/config"
	"balance/internal/ledger"
)

// Kind names a ledger store implementation.
type Kind string

const (
	Memory Kind = "memory"
	SQLite Kind = "sqlite"
)

// Kinds lists every supported store, in the order shown to users.
func Kinds() []Kind {
	return []Kind{Memory, SQLite}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Config selects and parameterises a store.
type Config struct {
	Kind      Kind
	SQLiteDSN string
}

// FromAppConfig extracts the store settings from the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{Kind: Kind(cfg.LedgerBackend), SQLiteDSN: cfg.SQLiteDSN}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown ledger backend %q: must be one of %v", c.Kind, Kinds())
	}
	if c.Kind == SQLite && c.SQLiteDSN == "" {
		return fmt.Errorf("SQLite DSN is required for the sqlite backend")
	}
	return nil
}

// Backend is an opened store with its lifecycle hooks.
type Backend struct {
	Store ledger.Store
	// Ping reports whether the store can serve requests. Used by /readyz.
	Ping func(ctx context.Context) error
	// Close releases the store; nil when there is nothing to release.
	Close func() error
}

// Factory opens stores.
type Factory interface {
	Open(ctx context.Context, cfg Config) (*Backend, error)
}
