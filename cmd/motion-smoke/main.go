// motion-smoke runs the Motion backend smoke test: it signs in, saves a Motion
// event and an AI event, reads them back, removes them again, and records
// every response in a log file.
//
// Usage:
//
//	motion-smoke            Run the workflow once
//	motion-smoke version    Print the build version
//
// Configuration comes from motion-smoke.yaml (or MOTION_SMOKE_CONFIG), .env
// files, and MOTION_SMOKE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/motion-backend/motion-smoke/internal/client"
	"github.com/motion-backend/motion-smoke/internal/config"
	"github.com/motion-backend/motion-smoke/internal/jsonfmt"
	"github.com/motion-backend/motion-smoke/internal/metrics"
	"github.com/motion-backend/motion-smoke/internal/smoke"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("motion-smoke version %s\n", version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "motion-smoke: unknown command %q\n\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Println("\nHTTP request failed:", err)
			fmt.Println(string(jsonfmt.Pretty(apiErr.Body)))
		} else {
			fmt.Println("\nUnexpected error:", err)
		}
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Debug("starting smoke run", "base_url", cfg.BaseURL, "log_file", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := smoke.New(cfg, smoke.WithLogger(logger)).Run(ctx)
	if res != nil {
		smoke.NewReporter(os.Stderr).Print(res)
		if cfg.MetricsFile != "" {
			rec := metrics.New()
			rec.Record(res)
			if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Error("metrics not written", "error", err)
			} else {
				logger.Debug("metrics written", "file", cfg.MetricsFile)
			}
		}
	}
	return runErr
}

func printUsage() {
	fmt.Printf(`motion-smoke %s

Usage:
  motion-smoke             Run the smoke test once
  motion-smoke version     Print the motion-smoke version

Environment:
  MOTION_SMOKE_CONFIG        Config file (default: ./motion-smoke.yaml when present)
  MOTION_SMOKE_BASE_URL      API base URL
  MOTION_SMOKE_EMAIL         Sign-in email (required)
  MOTION_SMOKE_PASSWORD      Sign-in password (required)
  MOTION_SMOKE_EVENT_ID      Motion event to save and look up
  MOTION_SMOKE_LOG_FILE      Log artifact path (default: motion-backend-smoketest.log)
  MOTION_SMOKE_LOG_LEVEL     debug, info, warn or error
  MOTION_SMOKE_METRICS_FILE  Prometheus textfile to write after the run
`, version)
}
