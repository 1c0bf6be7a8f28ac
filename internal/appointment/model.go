package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions for patients and doctors.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

// Administrative reports whether the role may set any appointment status
// directly, on any appointment.
func (r Role) Administrative() bool {
	switch r {
	case RoleAdmin, RoleNurse, RoleReceptionist:
		return true
	}
	return false
}

type CancelActor string

const (
	CancelledByPatient CancelActor = "patient"
	CancelledByDoctor  CancelActor = "doctor"
	CancelledBySystem  CancelActor = "system"
)

type Department string

const (
	DepartmentGeneral     Department = "general"
	DepartmentCardiology  Department = "cardiology"
	DepartmentPediatrics  Department = "pediatrics"
	DepartmentOrthopedics Department = "orthopedics"
	DepartmentNeurology   Department = "neurology"
	DepartmentDermatology Department = "dermatology"
)

func (d Department) Valid() bool {
	switch d {
	case DepartmentGeneral, DepartmentCardiology, DepartmentPediatrics,
		DepartmentOrthopedics, DepartmentNeurology, DepartmentDermatology:
		return true
	}
	return false
}

// Departments lists every clinical department accepted at booking time.
func Departments() []Department {
	return []Department{
		DepartmentGeneral,
		DepartmentCardiology,
		DepartmentPediatrics,
		DepartmentOrthopedics,
		DepartmentNeurology,
		DepartmentDermatology,
	}
}

// Appointment is a booked (doctor, date, time) slot and its lifecycle state.
// DoctorName is snapshotted at creation so reads never need a second lookup.
// Date carries only the calendar day; TimeOfDay is a half-hour mark such as
// "09:30".
type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	PatientEmail       string
	Department         Department
	DoctorID           uuid.UUID
	DoctorName         string
	Date               time.Time
	TimeOfDay          string
	Notes              string
	Status             Status
	IsEmergency        bool
	CancelledBy        *CancelActor
	CancellationReason *string
	ConfirmedAt        *time.Time
	AutoCancelledAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartsAt combines Date and TimeOfDay into one instant in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return At(a.Date, a.TimeOfDay, loc)
}

// At builds the instant for a calendar date plus an "HH:MM" time of day.
func At(date time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	h, m, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc), nil
}

// ParseTimeOfDay parses a zero-padded 24h "HH:MM" string. Only the canonical
// form is accepted: "9:00" and "09:00" must not name two distinct slots, so
// anything that does not round-trip through the format is rejected.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Format("15:04") != s {
		return 0, 0, fmt.Errorf("parse time of day %q: not zero-padded HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// SameDay compares two instants by calendar date only.
func SameDay(a, b time.Time) bool {
	return a.Format(time.DateOnly) == b.Format(time.DateOnly)
}

// BeforeDay reports whether a falls on an earlier calendar date than b.
func BeforeDay(a, b time.Time) bool {
	return a.Format(time.DateOnly) < b.Format(time.DateOnly)
}
