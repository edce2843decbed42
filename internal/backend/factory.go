package backend

import (
	"context"
	"fmt"

	"balance/internal/ledger"
	"balance/internal/log"
	"balance/internal/storage"
)

type factory struct {
	logger *log.Logger
}

// NewFactory returns the default Factory.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &factory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *factory) Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "dsn", cfg.SQLiteDSN)
		return &Backend{Store: repo, Ping: repo.Ping, Close: repo.Close}, nil
	default:
		f.logger.InfoContext(ctx, "Initialized memory backend")
		return &Backend{
			Store: ledger.MemoryStore{},
			Ping:  func(context.Context) error { return nil },
		}, nil
	}
}
