package booking

import (
	"context"
	"time"

	"github.com/careslot/backend/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Actor identifies the principal requesting an operation.
type Actor struct {
	Kind string // "user", "doctor" or "admin"
	ID   string
}

// Engine implements slot booking and cancellation over a Store. The
// state machine per (doctor, date, time) is Free -> Booked -> Free via
// cancellation; the slot winner is decided by the store's conditional
// reservation, never by an in-process check.
type Engine struct {
	store  Store
	logger *zap.Logger
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Book reserves the slot and creates the appointment record with
// snapshots of both profiles. For concurrent attempts on the same
// (doctor, date, time) at most one call succeeds; the rest return
// ErrSlotTaken.
func (e *Engine) Book(ctx context.Context, doctorID, userID, slotDate, slotTime string) (*models.Appointment, error) {
	doctor, err := e.store.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The reservation is the only admission control; anything after it
	// must roll it back on failure.
	if err := e.store.ReserveSlot(ctx, doctorID, slotDate, slotTime); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ID:         uuid.New().String(),
		UserID:     userID,
		DoctorID:   doctorID,
		SlotDate:   slotDate,
		SlotTime:   slotTime,
		UserData:   user.Snapshot(),
		DoctorData: doctor.Snapshot(),
		Amount:     doctor.Fee,
		CreatedAt:  time.Now(),
	}

	if err := e.store.InsertAppointment(ctx, appt); err != nil {
		if relErr := e.store.ReleaseSlot(ctx, doctorID, slotDate, slotTime); relErr != nil {
			e.logger.Error("failed to release slot after appointment insert failure",
				zap.String("doctor_id", doctorID),
				zap.String("slot_date", slotDate),
				zap.String("slot_time", slotTime),
				zap.Error(relErr))
		}
		return nil, err
	}

	e.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("doctor_id", doctorID),
		zap.String("user_id", userID),
		zap.String("slot_date", slotDate),
		zap.String("slot_time", slotTime))

	return appt, nil
}

// Cancel marks the appointment cancelled and frees its slot for
// rebooking. Only the owning user, the owning doctor or an admin may
// cancel. Cancelling an already-cancelled appointment is a no-op
// success.
func (e *Engine) Cancel(ctx context.Context, appointmentID string, actor Actor) error {
	appt, err := e.store.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	if !e.mayCancel(appt, actor) {
		return ErrForbidden
	}

	if appt.Cancelled {
		return nil
	}

	// Only the caller whose update transitioned cancelled to true may
	// release; a racing canceller that lost the transition must not free
	// a slot a later booking now holds.
	if err := e.store.SetCancelled(ctx, appointmentID); err != nil {
		if errors.Is(err, ErrAlreadyCancelled) {
			return nil
		}
		return err
	}

	// Best-effort cleanup: a doctor record or date entry that vanished
	// in the meantime is not an error.
	if err := e.store.ReleaseSlot(ctx, appt.DoctorID, appt.SlotDate, appt.SlotTime); err != nil {
		e.logger.Warn("failed to release slot on cancellation",
			zap.String("appointment_id", appointmentID),
			zap.String("doctor_id", appt.DoctorID),
			zap.Error(err))
	}

	e.logger.Info("appointment cancelled",
		zap.String("appointment_id", appointmentID),
		zap.String("by_kind", actor.Kind),
		zap.String("by_id", actor.ID))

	return nil
}

func (e *Engine) mayCancel(appt *models.Appointment, actor Actor) bool {
	switch actor.Kind {
	case "admin":
		return true
	case "user":
		return appt.UserID == actor.ID
	case "doctor":
		return appt.DoctorID == actor.ID
	}
	return false
}

// Complete marks the appointment completed. Only the owning doctor may
// complete; the slot remains consumed historically.
func (e *Engine) Complete(ctx context.Context, appointmentID, doctorID string) error {
	appt, err := e.store.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.DoctorID != doctorID {
		return ErrForbidden
	}
	return e.store.SetCompleted(ctx, appointmentID)
}

// PrepareOrder loads the appointment and checks it can still be paid
// for. The payment adapters call this before creating an external
// order.
func (e *Engine) PrepareOrder(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	appt, err := e.store.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Cancelled {
		return nil, ErrAlreadyCancelled
	}
	if appt.PaymentSettled {
		return nil, ErrAlreadySettled
	}
	return appt, nil
}

// AttachOrder records the external order reference on the appointment.
func (e *Engine) AttachOrder(ctx context.Context, appointmentID string, order models.PaymentOrder) error {
	return e.store.SetPaymentOrder(ctx, appointmentID, order)
}

// SettlePayment marks the appointment as paid after the provider's
// verification passed. Which provider settled it is not recorded
// beyond the order reference; only the boolean matters downstream.
func (e *Engine) SettlePayment(ctx context.Context, appointmentID string) error {
	appt, err := e.store.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.Cancelled {
		return ErrAlreadyCancelled
	}
	return e.store.SetPaymentSettled(ctx, appointmentID)
}
