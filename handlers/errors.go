package handlers

import (
	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/payments"
	"github.com/careslot/backend/store"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

// fail writes the uniform failure envelope. Unlike the source system,
// failures carry real HTTP status codes alongside success=false.
func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// failFromError maps domain errors to status codes and client-safe
// messages. Anything unrecognized is an internal error; the handler is
// expected to have logged it already.
func failFromError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		return fail(c, fiber.StatusConflict, "Slot not available")
	case errors.Is(err, booking.ErrDoctorUnavailable):
		return fail(c, fiber.StatusConflict, "Doctor not available")
	case errors.Is(err, booking.ErrDoctorNotFound):
		return fail(c, fiber.StatusNotFound, "Doctor not found")
	case errors.Is(err, booking.ErrUserNotFound):
		return fail(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		return fail(c, fiber.StatusNotFound, "Appointment not found")
	case errors.Is(err, booking.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Not authorized for this appointment")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return fail(c, fiber.StatusConflict, "Appointment already cancelled")
	case errors.Is(err, booking.ErrAlreadySettled):
		return fail(c, fiber.StatusConflict, "Payment already settled")
	case errors.Is(err, store.ErrDuplicateEmail):
		return fail(c, fiber.StatusConflict, "Email already registered")
	case errors.Is(err, payments.ErrVerificationFailed):
		return fail(c, fiber.StatusBadRequest, "Payment verification failed")
	}
	return fail(c, fiber.StatusInternalServerError, "Something went wrong")
}

// principalID reads the authenticated principal set by the token
// middleware.
func principalID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals("principalID").(string)
	if !ok || id == "" {
		return "", errors.New("principal ID not found in context")
	}
	return id, nil
}
