package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careflow/clinic-booking/internal/appointment"
	"github.com/careflow/clinic-booking/internal/directory"
)

// BookingService is the slice of the appointment service the handlers
// consume; the concrete *appointment.Service satisfies it.
type BookingService interface {
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	Transition(ctx context.Context, req appointment.TransitionRequest) (*appointment.Appointment, error)
	AvailableTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	AvailableDoctors(ctx context.Context, department appointment.Department, date time.Time, timeOfDay string) ([]directory.User, error)
	ListFor(ctx context.Context, actorID uuid.UUID, role appointment.Role) ([]appointment.Appointment, error)
	GetFor(ctx context.Context, actorID uuid.UUID, role appointment.Role, id uuid.UUID) (*appointment.Appointment, error)
}

func bookAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "no actor in context")
			return
		}
		if actor.Role != appointment.RolePatient {
			writeError(w, http.StatusForbidden, "patients_only", "only patients can book appointments")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil && req.DoctorID != "" {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
			return
		}

		var date time.Time
		if req.AppointmentDate != "" {
			date, err = time.Parse(time.DateOnly, req.AppointmentDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "appointmentDate must be YYYY-MM-DD")
				return
			}
		}

		appt, err := svc.Book(r.Context(), appointment.BookingRequest{
			PatientID:    actor.ID,
			PatientEmail: actor.Email,
			Department:   appointment.Department(req.Department),
			DoctorID:     doctorID,
			Date:         date,
			TimeOfDay:    req.AppointmentTime,
			Notes:        req.Notes,
			IsEmergency:  req.IsEmergency,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "no actor in context")
			return
		}

		appts, err := svc.ListFor(r.Context(), actor.ID, actor.Role)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "no actor in context")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetFor(r.Context(), actor.ID, actor.Role, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "no actor in context")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Transition(r.Context(), appointment.TransitionRequest{
			AppointmentID: id,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
			Target:        appointment.Status(req.Status),
			Reason:        req.CancellationReason,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availableTimesHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorIDStr := r.URL.Query().Get("doctorId")
		dateStr := r.URL.Query().Get("date")
		if doctorIDStr == "" || dateStr == "" {
			writeError(w, http.StatusBadRequest, "missing_parameters", "doctorId and date are required")
			return
		}

		doctorID, err := uuid.Parse(doctorIDStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
			return
		}
		date, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		times, err := svc.AvailableTimes(r.Context(), doctorID, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailableTimesResponse{AvailableTimes: times})
	}
}

func availableDoctorsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var date time.Time
		if dateStr := q.Get("date"); dateStr != "" {
			var err error
			date, err = time.Parse(time.DateOnly, dateStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
		}

		doctors, err := svc.AvailableDoctors(r.Context(),
			appointment.Department(q.Get("department")), date, q.Get("time"))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorsListHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := dir.ListActiveDoctors(r.Context(), r.URL.Query().Get("department"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorsCountHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := dir.CountActiveDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrMissingField):
		writeError(w, http.StatusBadRequest, "missing_field", err.Error())
	case errors.Is(err, appointment.ErrInvalidDepartment):
		writeError(w, http.StatusBadRequest, "invalid_department", err.Error())
	case errors.Is(err, appointment.ErrInvalidDoctor):
		writeError(w, http.StatusBadRequest, "invalid_doctor", err.Error())
	case errors.Is(err, appointment.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, appointment.ErrPastTime):
		writeError(w, http.StatusBadRequest, "past_time", err.Error())
	case errors.Is(err, appointment.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, appointment.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "doctor is not available at this time, please select another slot")
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, appointment.ErrForbiddenTransition):
		writeError(w, http.StatusForbidden, "forbidden_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
