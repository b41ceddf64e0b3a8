package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerly/internal/amqp"
	"ledgerly/internal/cache"
	"ledgerly/internal/cli"
	"ledgerly/internal/export/sheets"
	apphttp "ledgerly/internal/http"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = time.Minute
	purgeInterval   = time.Hour
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	state, err := cli.OpenState(cfg)
	if err != nil {
		logger.Error("Failed to open client state", log.FieldError, err, "backend", cfg.StateBackend)
		os.Exit(1)
	}
	defer state.Close()

	api := cli.NewAPI(cfg, logger)

	var opts []apphttp.ServerOption

	var events *amqp.Client
	if cfg.EventsEnabled() {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are best-effort; the app works without them.
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
			events = nil
		} else {
			defer events.Close()
			opts = append(opts, apphttp.WithPublisher(events))
			logger.Info("Change events enabled", "exchange", cfg.AMQPExchange)
		}
	}

	if cfg.ExportEnabled() {
		exp, err := sheets.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, sheets.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets export", log.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, apphttp.WithExporter(exp))
		logger.Info("Google Sheets export enabled", log.FieldSpreadsheet, cfg.GoogleSpreadsheetID)
	}

	srv, err := apphttp.NewServer(apphttp.OptionsFromConfig(cfg), api, state, logger, opts...)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger)
	srv.RegisterCaches(caches)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledgerly server", "port", cfg.Port, "api", cfg.DataBackend, "state", cfg.StateBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, sweepInterval)
	})
	if db, ok := state.(*storage.SQLite); ok {
		g.Go(func() error {
			purgeIdle(gctx, db, cfg.SessionIdleTTL, logger)
			return nil
		})
	}
	if events != nil {
		g.Go(func() error {
			return events.Consume(gctx, func(ev *amqp.TransactionEvent) error {
				srv.InvalidateUser(ev.UserID)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}

// purgeIdle removes browser sessions nobody has used for longer than ttl.
func purgeIdle(ctx context.Context, db *storage.SQLite, ttl time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeIdle(ctx, apphttp.SessionNamespace, ttl)
			if err != nil {
				logger.Warn("Failed to purge idle sessions", log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Purged idle sessions", log.FieldCount, n)
			}
		}
	}
}
