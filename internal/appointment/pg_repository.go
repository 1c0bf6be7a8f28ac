package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `
	id, patient_id, patient_email, department, doctor_id, doctor_name,
	appointment_date, appointment_time, notes, status, is_emergency,
	cancelled_by, cancellation_reason, confirmed_at, auto_cancelled_at,
	created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledBy *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientEmail,
		&a.Department,
		&a.DoctorID,
		&a.DoctorName,
		&a.Date,
		&a.TimeOfDay,
		&a.Notes,
		&a.Status,
		&a.IsEmergency,
		&cancelledBy,
		&a.CancellationReason,
		&a.ConfirmedAt,
		&a.AutoCancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if cancelledBy != nil {
		actor := CancelActor(*cancelledBy)
		a.CancelledBy = &actor
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// readRetry retries idempotent reads a bounded number of times when the
// driver reports the failure as safe to retry. Writes are never retried
// here; callers must retry the whole logical operation.
func readRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 3

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !pgconn.SafeToRetry(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, patient_email, department, doctor_id, doctor_name,
			appointment_date, appointment_time, notes, status, is_emergency,
			confirmed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING`+appointmentColumns,
		id, appt.PatientID, appt.PatientEmail, appt.Department, appt.DoctorID,
		appt.DoctorName, appt.Date, appt.TimeOfDay, appt.Notes, appt.Status,
		appt.IsEmergency, appt.ConfirmedAt)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := readRetry(ctx, func() error {
		row := r.db.QueryRow(ctx, `
			SELECT`+appointmentColumns+`
			FROM appointments
			WHERE id = $1
		`, id)
		var scanErr error
		appt, scanErr = scanAppointment(row)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) FindConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string, statuses []Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND appointment_time = $3
		  AND status = ANY($4)
		LIMIT 1
	`, doctorID, date, timeOfDay, statusStrings(statuses))
	return scanAppointment(row)
}

func (r *PgRepository) ApplyTransition(ctx context.Context, id uuid.UUID, from Status, patch TransitionPatch) (*Appointment, error) {
	var cancelledBy *string
	if patch.CancelledBy != nil {
		s := string(*patch.CancelledBy)
		cancelledBy = &s
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_by = CASE WHEN $8 THEN NULL ELSE COALESCE($3, cancelled_by) END,
		    cancellation_reason = CASE WHEN $8 THEN NULL ELSE COALESCE($4, cancellation_reason) END,
		    confirmed_at = COALESCE($5, confirmed_at),
		    auto_cancelled_at = CASE WHEN $8 THEN NULL ELSE COALESCE($6, auto_cancelled_at) END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $7
		RETURNING`+appointmentColumns,
		id, patch.Status, cancelledBy, patch.CancellationReason,
		patch.ConfirmedAt, patch.AutoCancelledAt, from, patch.ClearCancellation)

	updated, err := scanAppointment(row)
	if err != nil {
		// Re-activating into a slot someone else booked since the
		// cancellation trips the active-slot unique index.
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	var times []string
	err := readRetry(ctx, func() error {
		rows, err := r.db.Query(ctx, `
			SELECT appointment_time
			FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND status = ANY($3)
			ORDER BY appointment_time
		`, doctorID, date, statusStrings(ActiveStatuses))
		if err != nil {
			return err
		}
		defer rows.Close()

		times = times[:0]
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			times = append(times, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *PgRepository) BusyDoctors(ctx context.Context, date time.Time, timeOfDay string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := readRetry(ctx, func() error {
		rows, err := r.db.Query(ctx, `
			SELECT doctor_id
			FROM appointments
			WHERE appointment_date = $1
			  AND appointment_time = $2
			  AND status = ANY($3)
		`, date, timeOfDay, statusStrings(ActiveStatuses))
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`, patientID)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`, doctorID)
}

func (r *PgRepository) ListByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY appointment_date, appointment_time
	`, status)
}

func (r *PgRepository) ListAll(ctx context.Context) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_date DESC, appointment_time DESC
	`)
}

func (r *PgRepository) list(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	var result []Appointment
	err := readRetry(ctx, func() error {
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		var scanErr error
		result, scanErr = scanAppointments(rows)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
