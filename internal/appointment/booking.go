package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/clinic-booking/internal/clock"
	"github.com/careflow/clinic-booking/internal/directory"
	"github.com/careflow/clinic-booking/internal/observability/metrics"
	redisclient "github.com/careflow/clinic-booking/internal/redis"
	"github.com/careflow/clinic-booking/pkg/logging"
)

// Service is the appointment engine: booking, availability and role-gated
// status transitions.
type Service struct {
	repo    Repository
	dir     directory.Directory
	locker  redisclient.Locker
	clk     clock.Clock
	window  Window
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

type ServiceDeps struct {
	Repo      Repository
	Directory directory.Directory
	Locker    redisclient.Locker
	Clock     clock.Clock
	Window    Window
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
}

func NewService(d ServiceDeps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Window == (Window{}) {
		d.Window = DefaultWindow()
	}
	return &Service{
		repo:    d.Repo,
		dir:     d.Directory,
		locker:  d.Locker,
		clk:     d.Clock,
		window:  d.Window,
		metrics: d.Metrics,
		logger:  d.Logger,
	}
}

type BookingRequest struct {
	PatientID    uuid.UUID
	PatientEmail string
	Department   Department
	DoctorID     uuid.UUID
	Date         time.Time
	TimeOfDay    string
	Notes        string
	IsEmergency  bool
}

// Book validates the request and reserves the slot. The conflict check and
// the insert run inside a per-slot lock, and the store's uniqueness
// constraint backstops the lock, so two concurrent requests for one slot
// cannot both succeed.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(outcomeLabel(err))
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	switch {
	case req.Department == "":
		return nil, fmt.Errorf("%w: department", ErrMissingField)
	case req.DoctorID == uuid.Nil:
		return nil, fmt.Errorf("%w: doctorId", ErrMissingField)
	case req.Date.IsZero():
		return nil, fmt.Errorf("%w: appointmentDate", ErrMissingField)
	case req.TimeOfDay == "":
		return nil, fmt.Errorf("%w: appointmentTime", ErrMissingField)
	}
	if !req.Department.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDepartment, req.Department)
	}

	doctor, err := s.dir.GetUser(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrInvalidDoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != string(RoleDoctor) || !doctor.IsActive {
		return nil, ErrInvalidDoctor
	}

	now := s.clk.Now()
	if BeforeDay(req.Date, now) {
		return nil, ErrPastDate
	}
	if !s.window.Contains(req.TimeOfDay) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, req.TimeOfDay)
	}
	if SameDay(req.Date, now) {
		at, err := At(req.Date, req.TimeOfDay, now.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTime, req.TimeOfDay)
		}
		if !at.After(now) {
			return nil, ErrPastTime
		}
	}

	appt := &Appointment{
		ID:           uuid.New(),
		PatientID:    req.PatientID,
		PatientEmail: req.PatientEmail,
		Department:   req.Department,
		DoctorID:     doctor.ID,
		DoctorName:   doctor.FullName(),
		Date:         req.Date,
		TimeOfDay:    req.TimeOfDay,
		Notes:        strings.TrimSpace(req.Notes),
		Status:       StatusPending,
	}
	if req.IsEmergency {
		appt.IsEmergency = true
		appt.Status = StatusConfirmed
		confirmedAt := now
		appt.ConfirmedAt = &confirmedAt
	}

	key := redisclient.SlotKey{DoctorID: doctor.ID, Date: req.Date, TimeOfDay: req.TimeOfDay}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		// Re-check inside the critical section.
		existing, err := s.repo.FindConflict(lockCtx, doctor.ID, req.Date, req.TimeOfDay, ActiveStatuses)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check slot conflict: %w", err)
		}
		if existing != nil {
			return ErrSlotConflict
		}

		created, err = s.repo.Create(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		// A contended lock means another booking for this slot is in
		// flight; the loser reports the same conflict it would see a
		// moment later.
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"doctor_id", created.DoctorID,
		"date", created.Date.Format(time.DateOnly),
		"time", created.TimeOfDay,
		"status", created.Status,
		"emergency", created.IsEmergency,
	)
	return created, nil
}

// AvailableTimes returns the bookable slots for a doctor-day.
func (s *Service) AvailableTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctorId", ErrMissingField)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date", ErrMissingField)
	}

	doctor, err := s.dir.GetUser(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrInvalidDoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != string(RoleDoctor) || !doctor.IsActive {
		return nil, ErrInvalidDoctor
	}

	booked, err := s.repo.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	return AvailableTimes(s.window, booked, date, s.clk.Now()), nil
}

// AvailableDoctors lists active doctors, optionally narrowed to a department
// and to those free at (date, timeOfDay).
func (s *Service) AvailableDoctors(ctx context.Context, department Department, date time.Time, timeOfDay string) ([]directory.User, error) {
	doctors, err := s.dir.ListActiveDoctors(ctx, string(department))
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	if date.IsZero() || timeOfDay == "" {
		return doctors, nil
	}

	busyIDs, err := s.repo.BusyDoctors(ctx, date, timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("load busy doctors: %w", err)
	}
	busy := make(map[uuid.UUID]struct{}, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = struct{}{}
	}

	free := doctors[:0]
	for _, d := range doctors {
		if _, taken := busy[d.ID]; !taken {
			free = append(free, d)
		}
	}
	return free, nil
}

// ListFor returns the appointments visible to the actor: patients see their
// own, doctors those assigned to them, administrative roles everything.
func (s *Service) ListFor(ctx context.Context, actorID uuid.UUID, role Role) ([]Appointment, error) {
	switch {
	case role == RolePatient:
		return s.repo.ListByPatient(ctx, actorID)
	case role == RoleDoctor:
		return s.repo.ListByDoctor(ctx, actorID)
	case role.Administrative():
		return s.repo.ListAll(ctx)
	default:
		return nil, ErrAccessDenied
	}
}

// GetFor returns one appointment, enforcing patient ownership.
func (s *Service) GetFor(ctx context.Context, actorID uuid.UUID, role Role, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == RolePatient && appt.PatientID != actorID {
		return nil, ErrAccessDenied
	}
	return appt, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrMissingField),
		errors.Is(err, ErrInvalidDepartment),
		errors.Is(err, ErrInvalidDoctor),
		errors.Is(err, ErrPastDate),
		errors.Is(err, ErrPastTime),
		errors.Is(err, ErrInvalidTime):
		return "rejected"
	default:
		return "error"
	}
}
