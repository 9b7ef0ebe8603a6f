package booking

import (
	"context"

	"github.com/careslot/backend/models"
)

const latestAppointmentsLimit = 5

// DoctorDashboard is a derived, read-only view over the appointment
// ledger scoped to one doctor. Nothing here is persisted; correctness
// depends only on the ledger's current state.
type DoctorDashboard struct {
	Earnings           int                  `json:"earnings"`
	Appointments       int                  `json:"appointments"`
	Completed          int                  `json:"completed"`
	Cancelled          int                  `json:"cancelled"`
	Patients           int                  `json:"patients"`
	LatestAppointments []models.Appointment `json:"latest_appointments"`
}

// AdminDashboard aggregates over the whole ledger plus directory
// counts.
type AdminDashboard struct {
	Doctors            int64                `json:"doctors"`
	Appointments       int                  `json:"appointments"`
	Completed          int                  `json:"completed"`
	Cancelled          int                  `json:"cancelled"`
	Patients           int64                `json:"patients"`
	LatestAppointments []models.Appointment `json:"latest_appointments"`
}

// DoctorDashboard computes the doctor's earnings, appointment,
// completed, cancelled and distinct patient counts by scanning the
// ledger. Earnings sum amounts over non-cancelled, payment-settled
// appointments.
func (e *Engine) DoctorDashboard(ctx context.Context, doctorID string) (*DoctorDashboard, error) {
	appts, err := e.store.AppointmentsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	dash := &DoctorDashboard{
		Appointments:       len(appts),
		LatestAppointments: latest(appts),
	}

	patients := make(map[string]struct{})
	for _, a := range appts {
		if !a.Cancelled && a.PaymentSettled {
			dash.Earnings += a.Amount
		}
		if a.Completed {
			dash.Completed++
		}
		if a.Cancelled {
			dash.Cancelled++
		}
		patients[a.UserID] = struct{}{}
	}
	dash.Patients = len(patients)

	return dash, nil
}

// AdminDashboard computes platform-wide counts.
func (e *Engine) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	appts, err := e.store.AllAppointments(ctx)
	if err != nil {
		return nil, err
	}

	doctors, err := e.store.CountDoctors(ctx)
	if err != nil {
		return nil, err
	}

	users, err := e.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	dash := &AdminDashboard{
		Doctors:            doctors,
		Appointments:       len(appts),
		Patients:           users,
		LatestAppointments: latest(appts),
	}
	for _, a := range appts {
		if a.Completed {
			dash.Completed++
		}
		if a.Cancelled {
			dash.Cancelled++
		}
	}

	return dash, nil
}

func latest(appts []models.Appointment) []models.Appointment {
	if len(appts) > latestAppointmentsLimit {
		appts = appts[:latestAppointmentsLimit]
	}
	out := make([]models.Appointment, len(appts))
	copy(out, appts)
	return out
}
