package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/clinic-booking/internal/directory"
	redisclient "github.com/careflow/clinic-booking/internal/redis"
)

// memRepository is an in-memory Repository with the same semantics as the
// Postgres one: unique active slot per (doctor, date, time) and
// compare-and-swap transitions.
type memRepository struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*Appointment
	order []uuid.UUID

	failCreate     error
	failList       error
	failTransition map[uuid.UUID]error
}

func newMemRepository() *memRepository {
	return &memRepository{
		byID:           make(map[uuid.UUID]*Appointment),
		failTransition: make(map[uuid.UUID]error),
	}
}

func (m *memRepository) Create(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreate != nil {
		return nil, m.failCreate
	}
	for _, id := range m.order {
		existing := m.byID[id]
		if existing.DoctorID == appt.DoctorID &&
			SameDay(existing.Date, appt.Date) &&
			existing.TimeOfDay == appt.TimeOfDay &&
			!existing.Status.Terminal() {
			return nil, ErrSlotConflict
		}
	}

	stored := *appt
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.byID[stored.ID] = &stored
	m.order = append(m.order, stored.ID)

	out := stored
	return &out, nil
}

func (m *memRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

func (m *memRepository) FindConflict(_ context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string, statuses []Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		appt := m.byID[id]
		if appt.DoctorID != doctorID || !SameDay(appt.Date, date) || appt.TimeOfDay != timeOfDay {
			continue
		}
		for _, s := range statuses {
			if appt.Status == s {
				out := *appt
				return &out, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *memRepository) ApplyTransition(_ context.Context, id uuid.UUID, from Status, patch TransitionPatch) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failTransition[id]; ok {
		return nil, err
	}

	appt, ok := m.byID[id]
	if !ok || appt.Status != from {
		return nil, ErrNotFound
	}

	if appt.Status.Terminal() && !patch.Status.Terminal() {
		for _, otherID := range m.order {
			other := m.byID[otherID]
			if other.ID != appt.ID &&
				other.DoctorID == appt.DoctorID &&
				SameDay(other.Date, appt.Date) &&
				other.TimeOfDay == appt.TimeOfDay &&
				!other.Status.Terminal() {
				return nil, ErrSlotConflict
			}
		}
	}

	appt.Status = patch.Status
	if patch.ClearCancellation {
		appt.CancelledBy = nil
		appt.CancellationReason = nil
		appt.AutoCancelledAt = nil
	}
	if patch.CancelledBy != nil {
		appt.CancelledBy = patch.CancelledBy
	}
	if patch.CancellationReason != nil {
		appt.CancellationReason = patch.CancellationReason
	}
	if patch.ConfirmedAt != nil {
		appt.ConfirmedAt = patch.ConfirmedAt
	}
	if patch.AutoCancelledAt != nil {
		appt.AutoCancelledAt = patch.AutoCancelledAt
	}
	appt.UpdatedAt = time.Now()

	out := *appt
	return &out, nil
}

func (m *memRepository) BookedTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var times []string
	for _, id := range m.order {
		appt := m.byID[id]
		if appt.DoctorID == doctorID && SameDay(appt.Date, date) && !appt.Status.Terminal() {
			times = append(times, appt.TimeOfDay)
		}
	}
	return times, nil
}

func (m *memRepository) BusyDoctors(_ context.Context, date time.Time, timeOfDay string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for _, id := range m.order {
		appt := m.byID[id]
		if SameDay(appt.Date, date) && appt.TimeOfDay == timeOfDay && !appt.Status.Terminal() {
			ids = append(ids, appt.DoctorID)
		}
	}
	return ids, nil
}

func (m *memRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.PatientID == patientID })
}

func (m *memRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.DoctorID == doctorID })
}

func (m *memRepository) ListByStatus(_ context.Context, status Status) ([]Appointment, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	return m.filter(func(a *Appointment) bool { return a.Status == status })
}

func (m *memRepository) ListAll(_ context.Context) ([]Appointment, error) {
	return m.filter(func(*Appointment) bool { return true })
}

func (m *memRepository) filter(keep func(*Appointment) bool) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, id := range m.order {
		if keep(m.byID[id]) {
			out = append(out, *m.byID[id])
		}
	}
	return out, nil
}

// memDirectory is a fixed set of users keyed by id.
type memDirectory struct {
	users map[uuid.UUID]directory.User
}

func newMemDirectory(users ...directory.User) *memDirectory {
	d := &memDirectory{users: make(map[uuid.UUID]directory.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memDirectory) GetUser(_ context.Context, id uuid.UUID) (*directory.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &u, nil
}

func (d *memDirectory) ListActiveDoctors(_ context.Context, department string) ([]directory.User, error) {
	var out []directory.User
	for _, u := range d.users {
		if u.Role != "doctor" || !u.IsActive {
			continue
		}
		if department != "" && (u.Department == nil || *u.Department != department) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *memDirectory) CountActiveDoctors(_ context.Context) (int, error) {
	doctors, _ := d.ListActiveDoctors(context.Background(), "")
	return len(doctors), nil
}

// memLocker serializes critical sections per slot key, like the Redis
// locker but in-process.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) WithSlotLock(ctx context.Context, key redisclient.SlotKey, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	lock, ok := l.locks[key.String()]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key.String()] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func strPtr(s string) *string { return &s }

func activeDoctor(id uuid.UUID, dept string) directory.User {
	return directory.User{
		ID:         id,
		FirstName:  "Maya",
		LastName:   "Okafor",
		Email:      "maya.okafor@clinic.example",
		Role:       "doctor",
		Department: strPtr(dept),
		IsActive:   true,
	}
}
