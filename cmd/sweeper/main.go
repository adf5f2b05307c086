// Package main is the entry point for the expiry sweeper. It periodically
// marks pending transactions whose deadline has passed as expired. Lazy
// expiry on read keeps the API correct regardless of sweep cadence; the
// sweeper bounds how long overdue rows linger for audit and metrics readers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onnwee/quorumgate/internal/action"
	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/config"
	"github.com/onnwee/quorumgate/internal/db"
	"github.com/onnwee/quorumgate/internal/emergency"
	"github.com/onnwee/quorumgate/internal/middleware"
	"github.com/onnwee/quorumgate/internal/signer"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (environment variables take precedence)")
	interval := flag.Duration("interval", time.Minute, "sweep interval")
	batch := flag.Int("batch", 100, "maximum transactions expired per sweep")
	flag.Parse()

	if *help {
		fmt.Println("Quorumgate Expiry Sweeper")
		fmt.Println()
		fmt.Println("Usage: sweeper [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "config: DATABASE_URL is required, the sweeper only operates on persistent storage")
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	auditRepo := audit.NewPostgresRepository(conn, logger)

	// Only the expiry path is wired. The sweeper never submits, signs or
	// executes, so the quorum policies and dispatcher stay out.
	ledger := action.NewLedger(action.LedgerOptions{
		Repo:      action.NewPostgresRepository(conn, logger),
		Audit:     auditRepo,
		Metrics:   action.NewMetrics(),
		DomainTag: cfg.DomainTag,
	}, logger)

	registry := signer.NewRegistry(signer.NewPostgresRepository(conn), auditRepo, signer.Config{
		MinSigners:   cfg.MinSigners,
		MaxSigners:   cfg.MaxSigners,
		MinThreshold: cfg.MinThreshold,
		MaxThreshold: cfg.MaxThreshold,
	}, logger)
	controller := emergency.NewController(emergency.NewPostgresRepository(conn), registry, auditRepo, cfg.BaseDelay, nil, logger)

	logger.Info("sweeper started",
		"interval", interval.String(),
		"batch", *batch,
		"max_emergency_duration", cfg.MaxEmergencyDuration.String())

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			expired, err := ledger.ExpireOverdue(ctx, *batch)
			if err != nil {
				logger.Error("sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				logger.Info("expired overdue transactions", "count", expired)
			}
			clearStaleEmergency(ctx, controller, cfg.MaxEmergencyDuration, logger)
		}
	}
}

// clearStaleEmergency deactivates an emergency episode that has outlived the
// configured maximum duration. A zero maximum disables the timeout and
// episodes then end only by explicit deactivation.
func clearStaleEmergency(ctx context.Context, controller *emergency.Controller, maxDuration time.Duration, logger *slog.Logger) {
	if maxDuration <= 0 {
		return
	}
	state, err := controller.Current(ctx)
	if err != nil {
		logger.Error("failed to read emergency state", "error", err)
		return
	}
	if !state.Active || state.ActivatedAt == nil {
		return
	}
	if time.Since(*state.ActivatedAt) < maxDuration {
		return
	}
	if err := controller.Deactivate(ctx, "sweeper"); err != nil {
		logger.Error("failed to clear stale emergency", "error", err)
		return
	}
	logger.Warn("cleared emergency episode past its maximum duration",
		"level", state.Level,
		"activated_at", state.ActivatedAt.Format(time.RFC3339))
}
