package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careflow/clinic-booking/internal/appointment"
	"github.com/careflow/clinic-booking/internal/directory"
)

type BookAppointmentRequest struct {
	Department      string `json:"department"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"` // YYYY-MM-DD
	AppointmentTime string `json:"appointmentTime"` // HH:MM
	Notes           string `json:"notes,omitempty"`
	IsEmergency     bool   `json:"isEmergency,omitempty"`
}

type UpdateAppointmentRequest struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellationReason,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patientId"`
	PatientEmail       string     `json:"patientEmail"`
	Department         string     `json:"department"`
	DoctorID           uuid.UUID  `json:"doctorId"`
	DoctorName         string     `json:"doctorName"`
	AppointmentDate    string     `json:"appointmentDate"`
	AppointmentTime    string     `json:"appointmentTime"`
	Notes              string     `json:"notes,omitempty"`
	Status             string     `json:"status"`
	IsEmergency        bool       `json:"isEmergency"`
	CancelledBy        *string    `json:"cancelledBy,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	AutoCancelledAt    *time.Time `json:"autoCancelledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		PatientEmail:       a.PatientEmail,
		Department:         string(a.Department),
		DoctorID:           a.DoctorID,
		DoctorName:         a.DoctorName,
		AppointmentDate:    a.Date.Format(time.DateOnly),
		AppointmentTime:    a.TimeOfDay,
		Notes:              a.Notes,
		Status:             string(a.Status),
		IsEmergency:        a.IsEmergency,
		CancellationReason: a.CancellationReason,
		ConfirmedAt:        a.ConfirmedAt,
		AutoCancelledAt:    a.AutoCancelledAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	Department *string   `json:"department,omitempty"`
}

func toDoctorResponse(u *directory.User) DoctorResponse {
	return DoctorResponse{
		ID:         u.ID,
		Name:       u.FullName(),
		Email:      u.Email,
		Phone:      u.Phone,
		Department: u.Department,
	}
}

type AvailableTimesResponse struct {
	AvailableTimes []string `json:"availableTimes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
