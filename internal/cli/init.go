// Package cli holds the startup plumbing shared by cmd/ledgerly and
// cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerly/internal/config"
	"ledgerly/internal/ledger"
	"ledgerly/internal/ledger/memory"
	"ledgerly/internal/ledger/rest"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default.
func SetupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenState opens the client-state backend selected by STATE_BACKEND.
func OpenState(cfg *config.Config) (storage.Namespaced, error) {
	switch cfg.StateBackend {
	case config.StateBackendSQLite:
		db, err := storage.NewSQLite(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite state %s: %w", cfg.SQLiteDBPath, err)
		}
		return db, nil
	case config.StateBackendFile:
		f, err := storage.NewFile(cfg.StateFile)
		if err != nil {
			return nil, fmt.Errorf("open state file %s: %w", cfg.StateFile, err)
		}
		return f, nil
	case config.StateBackendMemory:
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// NewAPI returns the API adapter selected by DATA_BACKEND.
func NewAPI(cfg *config.Config, logger *log.Logger) ledger.API {
	if cfg.DataBackend == config.DataBackendMemory {
		logger.Info("Using in-memory ledger API")
		return memory.New()
	}
	logger.Info("Using REST ledger API", "base_url", cfg.APIBaseURL)
	return rest.NewClient(cfg.APIBaseURL)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once, bounded by timeout, after the signal arrives.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		cleanup(shutdownCtx)
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
