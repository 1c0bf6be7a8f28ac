package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/clinic-booking/internal/clock"
	"github.com/careflow/clinic-booking/internal/directory"
)

func newTestService(t *testing.T, clk clock.Clock, users ...directory.User) (*Service, *memRepository) {
	t.Helper()
	repo := newMemRepository()
	svc := NewService(ServiceDeps{
		Repo:      repo,
		Directory: newMemDirectory(users...),
		Locker:    newMemLocker(),
		Clock:     clk,
	})
	return svc, repo
}

func validBookingRequest(doctorID uuid.UUID) BookingRequest {
	return BookingRequest{
		PatientID:    uuid.New(),
		PatientEmail: "pat@example.com",
		Department:   DepartmentCardiology,
		DoctorID:     doctorID,
		Date:         time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		TimeOfDay:    "09:00",
	}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	doctorID := uuid.New()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, activeDoctor(doctorID, "cardiology"))

	appt, err := svc.Book(context.Background(), validBookingRequest(doctorID))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Nil(t, appt.ConfirmedAt)
	assert.False(t, appt.IsEmergency)
	assert.Equal(t, "Maya Okafor", appt.DoctorName)
	assert.NotEqual(t, uuid.Nil, appt.ID)
}

func TestBookEmergencyIsConfirmedImmediately(t *testing.T) {
	doctorID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, clock.NewFake(now), activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID)
	req.IsEmergency = true

	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, appt.Status)
	require.NotNil(t, appt.ConfirmedAt)
	assert.Equal(t, now, *appt.ConfirmedAt)
	assert.True(t, appt.IsEmergency)
}

func TestBookMissingFields(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	tests := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"department", func(r *BookingRequest) { r.Department = "" }},
		{"doctorId", func(r *BookingRequest) { r.DoctorID = uuid.Nil }},
		{"date", func(r *BookingRequest) { r.Date = time.Time{} }},
		{"time", func(r *BookingRequest) { r.TimeOfDay = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBookingRequest(doctorID)
			tt.mutate(&req)

			_, err := svc.Book(context.Background(), req)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestBookRejectsUnknownDepartment(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID)
	req.Department = "astrology"

	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidDepartment)
}

func TestBookInvalidDoctor(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	inactive := activeDoctor(uuid.New(), "cardiology")
	inactive.IsActive = false

	notADoctor := activeDoctor(uuid.New(), "cardiology")
	notADoctor.Role = "nurse"

	svc, _ := newTestService(t, clk, inactive, notADoctor)

	tests := []struct {
		name     string
		doctorID uuid.UUID
	}{
		{"unknown id", uuid.New()},
		{"inactive", inactive.ID},
		{"wrong role", notADoctor.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), validBookingRequest(tt.doctorID))
			assert.ErrorIs(t, err, ErrInvalidDoctor)
		})
	}
}

func TestBookPastDate(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 11, 0, 30, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID) // 2025-06-10
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrPastDate)
}

func TestBookPastTimeToday(t *testing.T) {
	doctorID := uuid.New()
	// 14:00 on the booking date itself.
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID)
	req.TimeOfDay = "13:30"
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrPastTime)

	// Equal to now counts as past.
	req.TimeOfDay = "14:00"
	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrPastTime)

	req.TimeOfDay = "14:30"
	_, err = svc.Book(context.Background(), req)
	assert.NoError(t, err)
}

func TestBookRejectsOffGridTime(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	for _, bad := range []string{"09:15", "08:00", "18:30", "9:00", "garbage"} {
		req := validBookingRequest(doctorID)
		req.TimeOfDay = bad
		_, err := svc.Book(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidTime, "time %q", bad)
	}
}

func TestBookUnpaddedTimeCannotBypassConflict(t *testing.T) {
	doctorID := uuid.New()
	svc, repo := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	_, err := svc.Book(context.Background(), validBookingRequest(doctorID))
	require.NoError(t, err)

	// "9:00" names the same real slot as "09:00"; it must be rejected
	// outright, never stored as a second active appointment.
	req := validBookingRequest(doctorID)
	req.TimeOfDay = "9:00"
	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidTime)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookSlotConflict(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	_, err := svc.Book(context.Background(), validBookingRequest(doctorID))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), validBookingRequest(doctorID))
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBookCancelledSlotIsReusable(t *testing.T) {
	doctorID := uuid.New()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, activeDoctor(doctorID, "cardiology"))

	first, err := svc.Book(context.Background(), validBookingRequest(doctorID))
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), TransitionRequest{
		AppointmentID: first.ID,
		ActorID:       first.PatientID,
		ActorRole:     RolePatient,
		Target:        StatusCancelled,
	})
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), validBookingRequest(doctorID))
	assert.NoError(t, err)
}

func TestBookConcurrentSameSlotExactlyOneWins(t *testing.T) {
	doctorID := uuid.New()
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		activeDoctor(doctorID, "cardiology"))

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), validBookingRequest(doctorID))
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrSlotConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestServiceAvailableTimes(t *testing.T) {
	doctorID := uuid.New()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID)
	_, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	times, err := svc.AvailableTimes(context.Background(), doctorID, req.Date)
	require.NoError(t, err)
	assert.NotContains(t, times, "09:00")
	assert.Contains(t, times, "09:30")
	assert.Len(t, times, 17)
}

func TestServiceAvailableTimesUnknownDoctor(t *testing.T) {
	svc, _ := newTestService(t, clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	_, err := svc.AvailableTimes(context.Background(), uuid.New(), time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidDoctor)
}

func TestAvailableDoctorsFiltersBusy(t *testing.T) {
	busy := activeDoctor(uuid.New(), "cardiology")
	free := activeDoctor(uuid.New(), "cardiology")
	free.Email = "free@clinic.example"

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, busy, free)

	req := validBookingRequest(busy.ID)
	_, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	doctors, err := svc.AvailableDoctors(context.Background(), DepartmentCardiology, req.Date, req.TimeOfDay)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, free.ID, doctors[0].ID)

	// Without a date/time filter both come back.
	doctors, err = svc.AvailableDoctors(context.Background(), DepartmentCardiology, time.Time{}, "")
	require.NoError(t, err)
	assert.Len(t, doctors, 2)
}

func TestListForRespectsRole(t *testing.T) {
	doctorID := uuid.New()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, activeDoctor(doctorID, "cardiology"))

	req := validBookingRequest(doctorID)
	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	own, err := svc.ListFor(context.Background(), appt.PatientID, RolePatient)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	other, err := svc.ListFor(context.Background(), uuid.New(), RolePatient)
	require.NoError(t, err)
	assert.Empty(t, other)

	byDoctor, err := svc.ListFor(context.Background(), doctorID, RoleDoctor)
	require.NoError(t, err)
	assert.Len(t, byDoctor, 1)

	all, err := svc.ListFor(context.Background(), uuid.New(), RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetForOwnership(t *testing.T) {
	doctorID := uuid.New()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk, activeDoctor(doctorID, "cardiology"))

	appt, err := svc.Book(context.Background(), validBookingRequest(doctorID))
	require.NoError(t, err)

	_, err = svc.GetFor(context.Background(), appt.PatientID, RolePatient, appt.ID)
	assert.NoError(t, err)

	_, err = svc.GetFor(context.Background(), uuid.New(), RolePatient, appt.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.GetFor(context.Background(), uuid.New(), RoleNurse, appt.ID)
	assert.NoError(t, err)

	_, err = svc.GetFor(context.Background(), appt.PatientID, RolePatient, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
