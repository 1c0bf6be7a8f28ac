package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TransitionRequest struct {
	AppointmentID uuid.UUID
	ActorID       uuid.UUID
	ActorRole     Role
	Target        Status
	Reason        string
}

// transitionPolicy decides, for one actor role, whether the requested
// transition is allowed and which fields it sets. Keeping one policy per
// role keeps the state machine auditable and testable per role.
type transitionPolicy func(appt *Appointment, req TransitionRequest, now time.Time) (TransitionPatch, error)

var transitionPolicies = map[Role]transitionPolicy{
	RolePatient:      patientPolicy,
	RoleDoctor:       doctorPolicy,
	RoleAdmin:        administrativePolicy,
	RoleNurse:        administrativePolicy,
	RoleReceptionist: administrativePolicy,
}

// Transition applies a role-gated status change. The underlying update is a
// compare-and-swap on the appointment's current status, so two interleaved
// transitions on one record resolve to whichever commits first.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	appt, err := s.transition(ctx, req)
	s.metrics.ObserveTransition(string(req.ActorRole), transitionOutcome(err))
	return appt, err
}

func (s *Service) transition(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	if !req.Target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrForbiddenTransition, req.Target)
	}

	policy, ok := transitionPolicies[req.ActorRole]
	if !ok {
		return nil, ErrAccessDenied
	}

	appt, err := s.repo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	patch, err := policy(appt, req, s.clk.Now())
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyTransition(ctx, appt.ID, appt.Status, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment transitioned",
		"appointment_id", updated.ID,
		"from", appt.Status,
		"to", updated.Status,
		"role", req.ActorRole,
	)
	return updated, nil
}

// patientPolicy: own appointments only, cancel only, reason optional.
func patientPolicy(appt *Appointment, req TransitionRequest, _ time.Time) (TransitionPatch, error) {
	if appt.PatientID != req.ActorID {
		return TransitionPatch{}, ErrAccessDenied
	}
	if req.Target != StatusCancelled {
		return TransitionPatch{}, fmt.Errorf("%w: patients can only cancel", ErrForbiddenTransition)
	}
	if appt.Status.Terminal() {
		return TransitionPatch{}, fmt.Errorf("%w: appointment already %s", ErrForbiddenTransition, appt.Status)
	}

	by := CancelledByPatient
	patch := TransitionPatch{Status: StatusCancelled, CancelledBy: &by}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		patch.CancellationReason = &reason
	}
	return patch, nil
}

// doctorPolicy: assigned appointments only; pending→confirmed, or cancel
// with a mandatory reason.
func doctorPolicy(appt *Appointment, req TransitionRequest, now time.Time) (TransitionPatch, error) {
	if appt.DoctorID != req.ActorID {
		return TransitionPatch{}, ErrAccessDenied
	}

	switch req.Target {
	case StatusConfirmed:
		if appt.Status != StatusPending {
			return TransitionPatch{}, fmt.Errorf("%w: cannot confirm a %s appointment", ErrForbiddenTransition, appt.Status)
		}
		confirmedAt := now
		return TransitionPatch{Status: StatusConfirmed, ConfirmedAt: &confirmedAt}, nil

	case StatusCancelled:
		if appt.Status.Terminal() {
			return TransitionPatch{}, fmt.Errorf("%w: appointment already %s", ErrForbiddenTransition, appt.Status)
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return TransitionPatch{}, ErrReasonRequired
		}
		by := CancelledByDoctor
		return TransitionPatch{Status: StatusCancelled, CancelledBy: &by, CancellationReason: &reason}, nil

	default:
		return TransitionPatch{}, fmt.Errorf("%w: doctors can only confirm or cancel", ErrForbiddenTransition)
	}
}

// administrativePolicy: any appointment, any status, no reason requirement.
func administrativePolicy(appt *Appointment, req TransitionRequest, now time.Time) (TransitionPatch, error) {
	patch := TransitionPatch{Status: req.Target}

	// Reopening a cancelled appointment wipes its cancellation audit.
	if appt.Status == StatusCancelled && req.Target != StatusCancelled {
		patch.ClearCancellation = true
	}

	switch req.Target {
	case StatusConfirmed:
		if appt.ConfirmedAt == nil {
			confirmedAt := now
			patch.ConfirmedAt = &confirmedAt
		}
	case StatusCancelled:
		// Staff cancellations are recorded as system-initiated so every
		// cancelled record names its canceller.
		by := CancelledBySystem
		patch.CancelledBy = &by
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			patch.CancellationReason = &reason
		}
	}
	return patch, nil
}

func transitionOutcome(err error) string {
	if err == nil {
		return "applied"
	}
	return "rejected"
}
