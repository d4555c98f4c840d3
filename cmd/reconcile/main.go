// Command reconcile compares every event's participant counter with the
// participation ledger and optionally repairs drifted counters.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablemate/tablemate/internal/config"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/service"
)

func main() {
	fix := flag.Bool("fix", false, "repair drifted counters instead of only reporting them")
	eventID := flag.String("event", "", "check a single event id")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", "tablemate-reconcile")

	if err := run(logger, *fix, *eventID, *timeout); err != nil {
		logger.Error("reconcile failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, fix bool, eventID string, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("reconcile needs STORAGE_DRIVER=%s, got %q", config.StoragePostgres, cfg.StorageDriver)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer repo.Close()

	participation := service.NewParticipationService(service.ParticipationServiceDeps{
		Ledger: repo,
		Events: repo,
		Users:  repo,
		Logger: logger,
	})

	var out any
	if eventID != "" {
		result, err := participation.Reconcile(ctx, eventID, fix)
		if err != nil {
			return err
		}
		out = result
	} else {
		report, err := participation.ReconcileAll(ctx, fix)
		if err != nil {
			return err
		}
		logger.Info("reconcile finished",
			"fix", fix,
			"drifted", len(report.Drifted),
			"repaired", report.Repaired,
		)
		out = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
