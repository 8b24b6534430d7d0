// Package cli holds the start-up sequence shared by the client programs.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raihanakbr/asr-streaming-clients/internal/config"
	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
	"github.com/raihanakbr/asr-streaming-clients/internal/sender"
)

// Env is everything a program needs after start-up.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Args    []string
}

// Setup parses flags, resolves configuration, builds the logger and starts
// the metrics endpoint when configured. The returned context is cancelled
// on SIGINT or SIGTERM.
func Setup(name, usage string, register func(*config.Flags)) (context.Context, context.CancelFunc, *Env, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] %s\n\n", name, usage)
		fs.PrintDefaults()
	}

	flags := config.NewFlags(fs)
	if register != nil {
		register(flags)
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := flags.Resolve()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(fs.Args()) == 0 {
		fs.Usage()
		return nil, nil, nil, fmt.Errorf("no WAV files given")
	}

	logger := config.NewLogger(cfg.Logging, os.Stderr).With(slog.String("program", name))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	m := metrics.NewMetrics()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("Metrics endpoint failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Configuration loaded",
		slog.String("addr", cfg.Server.Addr),
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	return ctx, stop, &Env{Config: cfg, Logger: logger, Metrics: m, Args: fs.Args()}, nil
}

// Fatal prints a start-up error and exits.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
}

// Report logs one line per result and returns the process exit code.
func Report(logger *slog.Logger, results []sender.FileResult) int {
	for _, r := range results {
		if r.OK() {
			logger.Info("Result",
				slog.String("file", r.Path),
				slog.String("session", r.SessionID),
				slog.Duration("elapsed", r.Elapsed),
				slog.String("text", r.Reply),
			)
			continue
		}
		logger.Error("Result",
			slog.String("file", r.Path),
			slog.String("session", r.SessionID),
			slog.String("error", r.Err.Error()),
		)
	}
	if sender.Failed(results) > 0 {
		return 1
	}
	return 0
}
