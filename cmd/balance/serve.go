package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"balance/internal/amqp"
	"balance/internal/backend"
	"balance/internal/cache"
	"balance/internal/cli"
	"balance/internal/config"
	"balance/internal/core"
	"balance/internal/events"
	apphttp "balance/internal/http"
	"balance/internal/ledger"
	"balance/internal/log"
	"balance/internal/session"
	"balance/internal/tracker"
)

const shutdownTimeout = 30 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web page, one ledger per browser session",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (overrides PORT).")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.GracefulShutdown(cmd.Context(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", log.FieldError, err, "backend", cfg.LedgerBackend)
		return err
	}
	if be.Close != nil {
		defer func() {
			if err := be.Close(); err != nil {
				logger.Error("Ledger backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()
	dispatcher := events.NewDispatcher(publisher, events.DefaultBufferSize, logger)

	format := core.NewFormatter(cfg.CurrencySymbol)
	sessions := session.NewManager(be.Store,
		session.Config{TTL: cfg.SessionTTL, MaxSessions: cfg.SessionMax},
		func(id string, book ledger.Book) *tracker.Tracker {
			return tracker.New(id, book,
				tracker.WithNotifier(dispatcher),
				tracker.WithFormatter(format),
				tracker.WithLogger(logger))
		}, logger)

	sweeper := cache.NewManager(func(removed int) {
		if removed > 0 {
			logger.WithComponent(log.ComponentCache).Info("Expired sessions released", log.FieldCount, removed)
		}
	})
	sweeper.Register(sessions)
	sweeper.StartCleanup(cfg.SessionSweepInterval)
	defer sweeper.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, sessions, apphttp.Options{
		Logger:             logger,
		Formatter:          format,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              be.Ping,
		EventStats:         dispatcher.Stats,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting balance server",
			"port", cfg.Port,
			"backend", cfg.LedgerBackend,
			"amqp", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully", "events", dispatcher.Stats())
	return nil
}

// newPublisher connects to the broker when one is configured. A broker that
// cannot be reached falls back to logging events.
func newPublisher(cfg *config.Config, logger *log.Logger) (events.Publisher, func()) {
	fallback := events.LogPublisher{Logger: logger.WithComponent(log.ComponentEvents)}
	if !cfg.AMQPEnabled() {
		return fallback, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err != nil {
		logger.WithComponent(log.ComponentAMQP).Warn("AMQP unavailable, ledger events will only be logged",
			log.FieldError, err,
			"exchange", cfg.AMQPExchange)
		return fallback, func() {}
	}
	logger.WithComponent(log.ComponentAMQP).Info("AMQP publisher connected",
		"exchange", cfg.AMQPExchange,
		"routing_key", cfg.AMQPRoutingKey)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.WithComponent(log.ComponentAMQP).Error("Failed to close AMQP connection", log.FieldError, err)
		}
	}
}
