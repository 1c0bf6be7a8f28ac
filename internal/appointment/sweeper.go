package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/careflow/clinic-booking/internal/clock"
	"github.com/careflow/clinic-booking/internal/observability/metrics"
	"github.com/careflow/clinic-booking/pkg/logging"
)

// AutoCancelReason is the fixed message recorded on sweeper cancellations.
const AutoCancelReason = "Automatically cancelled: Doctor did not confirm appointment within 6 hours before scheduled time."

// Sweeper force-cancels pending appointments whose confirmation deadline has
// arrived. Each cycle loads every pending appointment and cancels those
// starting within Deadline from now, boundary inclusive at both ends: an
// appointment exactly Deadline away is swept, one already in the past is
// left alone.
type Sweeper struct {
	repo         Repository
	clk          clock.Clock
	logger       *logging.Logger
	metrics      *metrics.SweeperMetrics
	deadline     time.Duration
	interval     time.Duration
	initialDelay time.Duration
	runTimeout   time.Duration
}

type SweeperConfig struct {
	Repo         Repository
	Clock        clock.Clock
	Logger       *logging.Logger
	Metrics      *metrics.SweeperMetrics
	Deadline     time.Duration // confirmation deadline, 6h in production
	Interval     time.Duration // sweep cadence
	InitialDelay time.Duration // delay before the first cycle
	RunTimeout   time.Duration // per-cycle timeout, 0 for default
}

func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 20 * time.Second
	}
	return &Sweeper{
		repo:         cfg.Repo,
		clk:          cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		deadline:     cfg.Deadline,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		runTimeout:   cfg.RunTimeout,
	}
}

// Run blocks until ctx is done, sweeping once after the initial delay and
// then on every interval tick. A failed cycle never disables future cycles.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper starting", "interval", s.interval, "initial_delay", s.initialDelay, "deadline", s.deadline)

	if s.initialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.initialDelay):
		}
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	cancelled, err := s.RunOnce(runCtx)
	if err != nil {
		s.metrics.ObserveError()
		s.logger.Error("sweep cycle failed", "error", err)
		return
	}
	s.metrics.ObserveRun(time.Since(start).Seconds(), cancelled)
	if cancelled > 0 {
		s.logger.Info("sweep cycle complete", "cancelled", cancelled, "duration", time.Since(start))
	}
}

// RunOnce performs one sweep cycle and returns how many appointments it
// cancelled. Per-record failures are logged and skipped; only a failure to
// load the pending set aborts the cycle.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	pending, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return 0, err
	}

	now := s.clk.Now()
	cancelled := 0

	for i := range pending {
		appt := &pending[i]

		startsAt, err := appt.StartsAt(now.Location())
		if err != nil {
			s.metrics.ObserveError()
			s.logger.Error("skipping appointment with bad time", "appointment_id", appt.ID, "error", err)
			continue
		}

		until := startsAt.Sub(now)
		if until < 0 || until > s.deadline {
			continue
		}

		by := CancelledBySystem
		reason := AutoCancelReason
		autoCancelledAt := now
		patch := TransitionPatch{
			Status:             StatusCancelled,
			CancelledBy:        &by,
			CancellationReason: &reason,
			AutoCancelledAt:    &autoCancelledAt,
		}

		if _, err := s.repo.ApplyTransition(ctx, appt.ID, StatusPending, patch); err != nil {
			// ErrNotFound here means a confirm or cancel won the race
			// since we loaded the pending set; nothing to do.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			s.metrics.ObserveError()
			s.logger.Error("failed to auto-cancel appointment", "appointment_id", appt.ID, "error", err)
			continue
		}

		cancelled++
		s.logger.Warn("auto-cancelled unconfirmed appointment",
			"appointment_id", appt.ID,
			"doctor", appt.DoctorName,
			"patient_email", appt.PatientEmail,
			"starts_at", startsAt,
		)
	}

	return cancelled, nil
}
