package handlers

import (
	"time"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/cache"
	"github.com/careslot/backend/config"
	"github.com/careslot/backend/models"
	"github.com/careslot/backend/store"
	"github.com/careslot/backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	doctorListCacheKey          = "list"
	doctorListAvailableCacheKey = "list:available"
	doctorListCacheTTL          = 5 * time.Minute
)

type DoctorHandler struct {
	config    *config.Config
	store     *store.Mongo
	engine    *booking.Engine
	cache     *cache.Cache
	issuer    *utils.TokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

func NewDoctorHandler(cfg *config.Config, st *store.Mongo, engine *booking.Engine, cache *cache.Cache,
	issuer *utils.TokenIssuer, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{
		config:    cfg,
		store:     st,
		engine:    engine,
		cache:     cache,
		issuer:    issuer,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *DoctorHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if !validateEmail(req.Email) {
		return fail(c, fiber.StatusBadRequest, "A valid email is required")
	}

	doctor, err := h.store.DoctorByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, booking.ErrDoctorNotFound) {
			return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Error("failed to load doctor for login", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Login failed")
	}

	if !utils.CheckPassword(doctor.Password, req.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := h.issuer.Issue(utils.KindDoctor, doctor.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Login failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

// List is the public directory endpoint: secrets stripped, served from
// the cache when warm. ?available=true narrows to doctors currently
// accepting bookings. A slightly stale list is acceptable; mutations
// invalidate both keys.
func (h *DoctorHandler) List(c *fiber.Ctx) error {
	availableOnly := c.QueryBool("available")
	key := doctorListCacheKey
	if availableOnly {
		key = doctorListAvailableCacheKey
	}

	var doctors []models.Doctor

	err := h.cache.Get(c.Context(), key, &doctors)
	if err == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"doctors": doctors,
		})
	}
	if !errors.Is(err, cache.ErrMiss) {
		h.logger.Warn("doctor list cache read failed", zap.Error(err))
	}

	raw, err := h.store.ListDoctors(c.Context(), availableOnly)
	if err != nil {
		h.logger.Error("failed to list doctors", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to load doctors")
	}

	doctors = make([]models.Doctor, 0, len(raw))
	for _, d := range raw {
		doctors = append(doctors, d.Public())
	}

	if err := h.cache.Set(c.Context(), key, doctors, doctorListCacheTTL); err != nil {
		h.logger.Warn("doctor list cache write failed", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"doctors": doctors,
	})
}

func (h *DoctorHandler) invalidateList(c *fiber.Ctx) {
	for _, key := range []string{doctorListCacheKey, doctorListAvailableCacheKey} {
		if err := h.cache.Delete(c.Context(), key); err != nil {
			h.logger.Warn("failed to invalidate doctor list cache", zap.Error(err))
		}
	}
}

func (h *DoctorHandler) Appointments(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	appointments, err := h.store.AppointmentsByDoctor(c.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to list doctor appointments", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to load appointments")
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"appointments": appointments,
	})
}

func (h *DoctorHandler) CancelAppointment(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	actor := booking.Actor{Kind: "doctor", ID: doctorID}
	if err := h.engine.Cancel(c.Context(), req.AppointmentID, actor); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment cancelled",
	})
}

func (h *DoctorHandler) CompleteAppointment(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	if err := h.engine.Complete(c.Context(), req.AppointmentID, doctorID); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment completed",
	})
}

// ChangeAvailability toggles the doctor's own availability flag.
func (h *DoctorHandler) ChangeAvailability(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	doctor, err := h.store.DoctorByID(c.Context(), doctorID)
	if err != nil {
		return failFromError(c, err)
	}

	if err := h.store.SetDoctorAvailability(c.Context(), doctorID, !doctor.Available); err != nil {
		h.logger.Error("failed to change availability", zap.Error(err))
		return failFromError(c, err)
	}
	h.invalidateList(c)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Availability changed",
	})
}

func (h *DoctorHandler) Dashboard(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	dashboard, err := h.engine.DoctorDashboard(c.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to compute doctor dashboard", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to load dashboard")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"dashData": dashboard,
	})
}

func (h *DoctorHandler) Profile(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	doctor, err := h.store.DoctorByID(c.Context(), doctorID)
	if err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"profileData": doctor,
	})
}

type DoctorProfileUpdateRequest struct {
	Fee       *int            `json:"fees" validate:"omitempty,gt=0"`
	Address   *models.Address `json:"address"`
	Available *bool           `json:"available"`
	About     *string         `json:"about"`
}

func (h *DoctorHandler) UpdateProfile(c *fiber.Ctx) error {
	doctorID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req DoctorProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Consultation fee must be a positive amount")
	}

	update := store.DoctorProfileUpdate{
		Fee:       req.Fee,
		Address:   req.Address,
		Available: req.Available,
		About:     req.About,
	}
	if err := h.store.UpdateDoctorProfile(c.Context(), doctorID, update); err != nil {
		if !errors.Is(err, booking.ErrDoctorNotFound) {
			h.logger.Error("failed to update doctor profile", zap.Error(err))
		}
		return failFromError(c, err)
	}
	h.invalidateList(c)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
	})
}
