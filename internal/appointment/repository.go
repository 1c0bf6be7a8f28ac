package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionPatch is the set of fields a status transition may touch. Nil
// pointer fields are left unchanged by the store. ClearCancellation wipes
// cancelled_by, cancellation_reason and auto_cancelled_at; it is set when a
// transition leaves the cancelled status, so a reopened appointment carries
// no stale cancellation audit.
type TransitionPatch struct {
	Status             Status
	CancelledBy        *CancelActor
	CancellationReason *string
	ConfirmedAt        *time.Time
	AutoCancelledAt    *time.Time
	ClearCancellation  bool
}

// Repository contains all store interactions needed by the booking service
// and the expiry sweeper.
type Repository interface {
	// Create persists a new appointment. The store enforces the conflict
	// invariant: an insert that would give a (doctor, date, time) slot a
	// second pending/confirmed appointment fails with ErrSlotConflict.
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindConflict returns the appointment occupying (doctorID, date,
	// timeOfDay) in one of the given statuses, or ErrNotFound.
	FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string, statuses []Status) (*Appointment, error)

	// ApplyTransition updates the appointment only if its status still
	// equals from, making concurrent transitions on one record safe.
	// ErrNotFound means the record is gone or was moved on concurrently.
	// Re-activating an appointment whose slot has been taken in the
	// meantime fails with ErrSlotConflict.
	ApplyTransition(ctx context.Context, id uuid.UUID, from Status, patch TransitionPatch) (*Appointment, error)

	// BookedTimes returns the time-of-day strings occupied by
	// pending/confirmed appointments for a doctor-day, for slot calculation.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)

	// BusyDoctors returns the ids of doctors holding a pending/confirmed
	// appointment at (date, timeOfDay).
	BusyDoctors(ctx context.Context, date time.Time, timeOfDay string) ([]uuid.UUID, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
	ListByStatus(ctx context.Context, status Status) ([]Appointment, error)
	ListAll(ctx context.Context) ([]Appointment, error)
}
