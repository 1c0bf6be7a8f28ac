package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/careflow/clinic-booking/internal/appointment"
	"github.com/careflow/clinic-booking/internal/config"
	"github.com/careflow/clinic-booking/internal/db"
	"github.com/careflow/clinic-booking/internal/observability/metrics"
	"github.com/careflow/clinic-booking/pkg/logging"
)

// The sweeper is its own process so that a crashed or slow API server never
// stalls auto-expiry, and vice versa.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	logger.Info("sweeper starting",
		"env", cfg.Env,
		"interval", cfg.SweepInterval,
		"deadline", cfg.ConfirmDeadline,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	sweeper := appointment.NewSweeper(appointment.SweeperConfig{
		Repo:         appointment.NewPgRepository(pgPool),
		Logger:       logger,
		Metrics:      metrics.NewSweeperMetrics(prometheus.DefaultRegisterer),
		Deadline:     cfg.ConfirmDeadline,
		Interval:     cfg.SweepInterval,
		InitialDelay: cfg.SweepInitialDelay,
	})

	sweeper.Run(rootCtx)
	logger.Info("sweeper stopped")
}
