package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/careslot/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same reservation semantics as
// the Mongo implementation: check-and-insert under one lock.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*models.User
	doctors      map[string]*models.Doctor
	appointments map[string]*models.Appointment
	order        []string // appointment ids, insertion order

	failInsert bool
	releases   int // slots actually removed by ReleaseSlot
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*models.User),
		doctors:      make(map[string]*models.Doctor),
		appointments: make(map[string]*models.Appointment),
	}
}

func (m *memStore) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) DoctorByID(_ context.Context, id string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	cp.SlotsBooked = make(models.SlotLedger, len(d.SlotsBooked))
	for date, slots := range d.SlotsBooked {
		cp.SlotsBooked[date] = append([]string(nil), slots...)
	}
	return &cp, nil
}

func (m *memStore) ReserveSlot(_ context.Context, doctorID, date, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[doctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	if !d.Available {
		return ErrDoctorUnavailable
	}
	if d.SlotsBooked.Has(date, slot) {
		return ErrSlotTaken
	}
	if d.SlotsBooked == nil {
		d.SlotsBooked = models.SlotLedger{}
	}
	d.SlotsBooked[date] = append(d.SlotsBooked[date], slot)
	return nil
}

func (m *memStore) ReleaseSlot(_ context.Context, doctorID, date, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[doctorID]
	if !ok {
		return nil
	}
	slots := d.SlotsBooked[date]
	for i, s := range slots {
		if s == slot {
			d.SlotsBooked[date] = append(slots[:i], slots[i+1:]...)
			m.releases++
			break
		}
	}
	return nil
}

func (m *memStore) InsertAppointment(_ context.Context, appt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return assert.AnError
	}
	cp := *appt
	m.appointments[appt.ID] = &cp
	m.order = append(m.order, appt.ID)
	return nil
}

func (m *memStore) AppointmentByID(_ context.Context, id string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) setFlag(id string, set func(*models.Appointment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	set(a)
	return nil
}

func (m *memStore) SetCancelled(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if a.Cancelled {
		return ErrAlreadyCancelled
	}
	a.Cancelled = true
	return nil
}

func (m *memStore) SetCompleted(_ context.Context, id string) error {
	return m.setFlag(id, func(a *models.Appointment) { a.Completed = true })
}

func (m *memStore) SetPaymentSettled(_ context.Context, id string) error {
	return m.setFlag(id, func(a *models.Appointment) { a.PaymentSettled = true })
}

func (m *memStore) SetPaymentOrder(_ context.Context, id string, order models.PaymentOrder) error {
	return m.setFlag(id, func(a *models.Appointment) { a.Order = &order })
}

func (m *memStore) scan(match func(*models.Appointment) bool) []models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	// newest-first
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.appointments[m.order[i]]
		if match(a) {
			out = append(out, *a)
		}
	}
	return out
}

func (m *memStore) AppointmentsByUser(_ context.Context, userID string) ([]models.Appointment, error) {
	return m.scan(func(a *models.Appointment) bool { return a.UserID == userID }), nil
}

func (m *memStore) AppointmentsByDoctor(_ context.Context, doctorID string) ([]models.Appointment, error) {
	return m.scan(func(a *models.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *memStore) AllAppointments(_ context.Context) ([]models.Appointment, error) {
	return m.scan(func(*models.Appointment) bool { return true }), nil
}

func (m *memStore) CountDoctors(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.doctors)), nil
}

func (m *memStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	st := newMemStore()
	st.users["user-1"] = &models.User{
		ID:    "user-1",
		Name:  "Asha Rao",
		Email: "asha@example.com",
		Phone: "9876543210",
	}
	st.doctors["doc-1"] = &models.Doctor{
		ID:          "doc-1",
		Name:        "Dr. Menon",
		Email:       "menon@example.com",
		Speciality:  "Dermatologist",
		Available:   true,
		Fee:         500,
		SlotsBooked: models.SlotLedger{},
		CreatedAt:   time.Now(),
	}
	return NewEngine(st, zap.NewNop()), st
}

func TestBook(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)
	require.NotNil(t, appt)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, "user-1", appt.UserID)
	assert.Equal(t, "doc-1", appt.DoctorID)
	assert.Equal(t, 500, appt.Amount, "amount must snapshot the fee at booking time")
	assert.Equal(t, "Asha Rao", appt.UserData.Name)
	assert.Equal(t, "Dr. Menon", appt.DoctorData.Name)
	assert.False(t, appt.Cancelled)
	assert.False(t, appt.PaymentSettled)
	assert.False(t, appt.Completed)

	assert.True(t, st.doctors["doc-1"].SlotsBooked.Has("2026-09-10", "10:30"))
}

func TestBookSlotTaken(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	_, err = engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	assert.ErrorIs(t, err, ErrSlotTaken)

	// A different time on the same date is still free.
	_, err = engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "11:00")
	assert.NoError(t, err)
}

func TestBookConcurrentSingleWinner(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	const attempts = 50
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, ErrSlotTaken)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, losses)
	assert.Len(t, st.doctors["doc-1"].SlotsBooked["2026-09-10"], 1)
}

func TestBookDoctorUnavailable(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	st.doctors["doc-1"].Available = false

	_, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
	assert.False(t, st.doctors["doc-1"].SlotsBooked.Has("2026-09-10", "10:30"))
}

func TestBookUnknownDoctorAndUser(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Book(ctx, "nope", "user-1", "2026-09-10", "10:30")
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = engine.Book(ctx, "doc-1", "nope", "2026-09-10", "10:30")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBookRollsBackSlotOnInsertFailure(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	st.failInsert = true
	_, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.Error(t, err)

	// The reservation must not leak when the record failed to persist.
	st.failInsert = false
	_, err = engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	assert.NoError(t, err)
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	err = engine.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"})
	require.NoError(t, err)

	stored, err := st.AppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled)
	assert.False(t, st.doctors["doc-1"].SlotsBooked.Has("2026-09-10", "10:30"))

	// Same slot can now be booked again.
	_, err = engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	assert.NoError(t, err)
}

func TestCancelIdempotent(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"}))

	// Rebook the slot, then cancel the first appointment again. The
	// second cancel must not free the new holder's slot.
	rebooked, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"}))
	assert.True(t, st.doctors["doc-1"].SlotsBooked.Has("2026-09-10", "10:30"))

	stored, err := st.AppointmentByID(ctx, rebooked.ID)
	require.NoError(t, err)
	assert.False(t, stored.Cancelled)
}

func TestCancelConcurrentReleasesOnce(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "admin", ID: "admin"}))
		}()
	}
	wg.Wait()

	// Exactly one canceller may free the slot; a double release would
	// strip a subsequent booking's reservation.
	assert.Equal(t, 1, st.releases)
}

// staleCancelStore serves appointment reads with the cancelled flag
// cleared, simulating a canceller that read the record just before a
// racing cancellation transitioned it.
type staleCancelStore struct {
	*memStore
}

func (s *staleCancelStore) AppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.memStore.AppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	appt.Cancelled = false
	return appt, nil
}

func TestCancelLostRaceKeepsRebookedSlot(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)
	require.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"}))

	rebooked, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	// The late canceller saw the appointment before the first
	// cancellation landed; its cancel must be a no-op success that
	// leaves the rebooked reservation in place.
	stale := NewEngine(&staleCancelStore{st}, zap.NewNop())
	require.NoError(t, stale.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"}))

	assert.True(t, st.doctors["doc-1"].SlotsBooked.Has("2026-09-10", "10:30"))
	stored, err := st.AppointmentByID(ctx, rebooked.ID)
	require.NoError(t, err)
	assert.False(t, stored.Cancelled)
}

func TestCancelAuthorization(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   Actor
		wantErr error
	}{
		{"owning user", Actor{Kind: "user", ID: "user-1"}, nil},
		{"other user", Actor{Kind: "user", ID: "user-2"}, ErrForbidden},
		{"owning doctor", Actor{Kind: "doctor", ID: "doc-1"}, nil},
		{"other doctor", Actor{Kind: "doctor", ID: "doc-2"}, ErrForbidden},
		{"admin", Actor{Kind: "admin", ID: "admin@careslot.dev"}, nil},
		{"unknown kind", Actor{Kind: "ghost", ID: "user-1"}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
			require.NoError(t, err)

			err = engine.Cancel(ctx, appt.ID, tt.actor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				// Free the slot for the next case.
				require.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "admin", ID: "admin"}))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCancelUnknownAppointment(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.Cancel(context.Background(), "missing", Actor{Kind: "admin", ID: "admin"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestComplete(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	assert.ErrorIs(t, engine.Complete(ctx, appt.ID, "doc-2"), ErrForbidden)

	require.NoError(t, engine.Complete(ctx, appt.ID, "doc-1"))
	stored, err := st.AppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
}

func TestPaymentLifecycle(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)

	prepared, err := engine.PrepareOrder(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.Amount, prepared.Amount)

	order := models.PaymentOrder{Provider: "razorpay", OrderID: "order_123"}
	require.NoError(t, engine.AttachOrder(ctx, appt.ID, order))

	require.NoError(t, engine.SettlePayment(ctx, appt.ID))
	stored, err := st.AppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaymentSettled)
	require.NotNil(t, stored.Order)
	assert.Equal(t, "order_123", stored.Order.OrderID)

	// A settled appointment cannot be re-ordered.
	_, err = engine.PrepareOrder(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestPaymentOnCancelledAppointment(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	appt, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:30")
	require.NoError(t, err)
	require.NoError(t, engine.Cancel(ctx, appt.ID, Actor{Kind: "user", ID: "user-1"}))

	_, err = engine.PrepareOrder(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	assert.ErrorIs(t, engine.SettlePayment(ctx, appt.ID), ErrAlreadyCancelled)
}

func TestDoctorDashboard(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	st.users["user-2"] = &models.User{ID: "user-2", Name: "Vikram", Email: "vikram@example.com"}

	// Settled-and-completed, unpaid, and cancelled-after-payment
	// appointments.
	a1, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "10:00")
	require.NoError(t, err)
	require.NoError(t, engine.SettlePayment(ctx, a1.ID))
	require.NoError(t, engine.Complete(ctx, a1.ID, "doc-1"))

	_, err = engine.Book(ctx, "doc-1", "user-2", "2026-09-10", "11:00")
	require.NoError(t, err)

	a3, err := engine.Book(ctx, "doc-1", "user-1", "2026-09-10", "12:00")
	require.NoError(t, err)
	require.NoError(t, engine.SettlePayment(ctx, a3.ID))
	require.NoError(t, engine.Cancel(ctx, a3.ID, Actor{Kind: "user", ID: "user-1"}))

	dash, err := engine.DoctorDashboard(ctx, "doc-1")
	require.NoError(t, err)

	// Only a1 counts toward earnings: a2 is unpaid, a3 cancelled.
	assert.Equal(t, 500, dash.Earnings)
	assert.Equal(t, 3, dash.Appointments)
	assert.Equal(t, 1, dash.Completed)
	assert.Equal(t, 1, dash.Cancelled)
	assert.Equal(t, 2, dash.Patients)
	require.Len(t, dash.LatestAppointments, 3)
	assert.Equal(t, a3.ID, dash.LatestAppointments[0].ID, "latest first")
}

func TestAdminDashboard(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	st.users["user-2"] = &models.User{ID: "user-2", Name: "Vikram", Email: "vikram@example.com"}
	st.doctors["doc-2"] = &models.Doctor{
		ID: "doc-2", Name: "Dr. Iyer", Available: true, Fee: 700,
		SlotsBooked: models.SlotLedger{},
	}

	var appts []*models.Appointment
	for i, slot := range []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00"} {
		doc := "doc-1"
		if i%2 == 1 {
			doc = "doc-2"
		}
		a, err := engine.Book(ctx, doc, "user-1", "2026-09-10", slot)
		require.NoError(t, err)
		appts = append(appts, a)
	}
	require.NoError(t, engine.Complete(ctx, appts[0].ID, "doc-1"))
	require.NoError(t, engine.Cancel(ctx, appts[1].ID, Actor{Kind: "admin", ID: "admin"}))

	dash, err := engine.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.Doctors)
	assert.Equal(t, int64(2), dash.Patients)
	assert.Equal(t, 6, dash.Appointments)
	assert.Equal(t, 1, dash.Completed)
	assert.Equal(t, 1, dash.Cancelled)
	assert.Len(t, dash.LatestAppointments, 5)
}
