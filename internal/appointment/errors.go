package appointment

import "errors"

var (
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidDoctor       = errors.New("invalid or unavailable doctor")
	ErrInvalidDepartment   = errors.New("unknown department")
	ErrPastDate            = errors.New("cannot book appointments in the past")
	ErrPastTime            = errors.New("cannot book a time that has already passed today")
	ErrInvalidTime         = errors.New("time is not a bookable slot")
	ErrSlotConflict        = errors.New("doctor is not available at this time")
	ErrNotFound            = errors.New("appointment not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrForbiddenTransition = errors.New("status transition not allowed for role")
	ErrReasonRequired      = errors.New("cancellation reason is required")
)
