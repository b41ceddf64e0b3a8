// Command ledgerctl is a terminal client for the transactions API. The
// session of each profile is kept in the client-state store, so a login
// survives between invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ledgerly/internal/cli"
	"ledgerly/internal/config"
	"ledgerly/internal/export/sheets"
	"ledgerly/internal/log"
)

// errUsage marks a malformed command line; it exits with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cli.LoadEnvFile()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, stderr).WithComponent(log.ComponentCLI)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	state, err := cli.OpenState(cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	a := newApp(cli.NewAPI(cfg, logger), state.Namespace(profileNamespace+cfg.Profile), logger, stdin, stdout, stderr)
	if cfg.ExportEnabled() {
		a.newExporter = func(ctx context.Context) (exporter, error) {
			return sheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, sheets.Credentials{
				JSON: cfg.GoogleServiceAccountJSON,
				File: cfg.GoogleServiceAccountFile,
			}, logger)
		}
	}
	return a.dispatch(ctx, args)
}
