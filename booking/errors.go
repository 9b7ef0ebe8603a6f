package booking

import "github.com/pkg/errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrDoctorUnavailable   = errors.New("doctor not available")
	ErrSlotTaken           = errors.New("slot already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrForbidden           = errors.New("operation not allowed for this principal")
	ErrAlreadyCancelled    = errors.New("appointment already cancelled")
	ErrAlreadySettled      = errors.New("appointment payment already settled")
)
