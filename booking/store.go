package booking

import (
	"context"

	"github.com/careslot/backend/models"
)

// Store is the persistence surface the engine runs on. The Mongo
// implementation lives in the store package; tests use an in-memory
// fake.
//
// ReserveSlot is the concurrency-critical operation: it must add the
// slot to the doctor's ledger only if the doctor exists, is available,
// and the slot is not already present, atomically with respect to
// concurrent reservations of the same (doctor, date, time).
type Store interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	DoctorByID(ctx context.Context, id string) (*models.Doctor, error)

	// ReserveSlot returns ErrDoctorNotFound, ErrDoctorUnavailable or
	// ErrSlotTaken; for all concurrent reservations of one slot at most
	// one call succeeds.
	ReserveSlot(ctx context.Context, doctorID, date, slot string) error

	// ReleaseSlot removes the slot from the ledger. A missing doctor,
	// date entry or slot is not an error.
	ReleaseSlot(ctx context.Context, doctorID, date, slot string) error

	InsertAppointment(ctx context.Context, appt *models.Appointment) error
	AppointmentByID(ctx context.Context, id string) (*models.Appointment, error)

	// SetCancelled flips cancelled from false to true. It returns
	// ErrAlreadyCancelled when the flag was already set, so of any
	// number of concurrent cancellations exactly one observes the
	// transition.
	SetCancelled(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id string) error
	SetPaymentSettled(ctx context.Context, id string) error
	SetPaymentOrder(ctx context.Context, id string, order models.PaymentOrder) error

	// Appointment scans return newest-first.
	AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error)
	AppointmentsByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error)
	AllAppointments(ctx context.Context) ([]models.Appointment, error)

	CountDoctors(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}
