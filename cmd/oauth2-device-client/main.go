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

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// Version is set by the build process
var Version = "dev"

// Process exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitDenied  = 3
	exitExpired = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("oauth2-device-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a TOML configuration file")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintln(stdout, Version)
		return exitOK
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return exitUsage
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if _, err := a.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, deviceflow.ErrAccessDenied):
		return exitDenied
	case errors.Is(err, deviceflow.ErrExpiredToken), errors.Is(err, deviceflow.ErrDeadlineExceeded):
		return exitExpired
	default:
		return exitFailure
	}
}
