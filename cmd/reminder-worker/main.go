package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/clinic-appointment-assistant/internal/app"
	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/reminders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "reminder-worker")
	logger.Info("reminder worker starting up", "env", cfg.Env, "interval", cfg.ReminderInterval,
		"lookahead_days", cfg.ReminderLookaheadDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Scheduler, logger)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Scheduler, logger)
		}
	}
}

func runOnce(ctx context.Context, s *reminders.Scheduler, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	results, err := s.ProcessDue(runCtx)
	if err != nil {
		logger.Error("reminder run error", "error", err)
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	logger.Info("reminder run complete", "sent", len(results)-failed, "failed", failed,
		"duration_ms", time.Since(start).Milliseconds())
}
