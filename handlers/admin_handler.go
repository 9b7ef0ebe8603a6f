package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"strconv"
	"time"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/cache"
	"github.com/careslot/backend/config"
	"github.com/careslot/backend/media"
	"github.com/careslot/backend/models"
	"github.com/careslot/backend/store"
	"github.com/careslot/backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type AdminHandler struct {
	config    *config.Config
	store     *store.Mongo
	engine    *booking.Engine
	cache     *cache.Cache
	uploader  *media.Uploader
	issuer    *utils.TokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

func NewAdminHandler(cfg *config.Config, st *store.Mongo, engine *booking.Engine, cache *cache.Cache,
	uploader *media.Uploader, issuer *utils.TokenIssuer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		config:    cfg,
		store:     st,
		engine:    engine,
		cache:     cache,
		uploader:  uploader,
		issuer:    issuer,
		validator: validator.New(),
		logger:    logger,
	}
}

// Login authenticates against the single configured credential pair.
// This is a deliberately weaker scheme than the hashed-credential store
// used for users and doctors; it stays separate by design.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(h.config.AdminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.config.AdminPassword)) == 1
	if !emailOK || !passOK {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := h.issuer.Issue(utils.KindAdmin, h.config.AdminEmail)
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Login failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

type AddDoctorRequest struct {
	Name       string `validate:"required,min=2"`
	Email      string `validate:"required,email"`
	Password   string `validate:"required,min=8"`
	Speciality string `validate:"required"`
	Degree     string `validate:"required"`
	Experience string `validate:"required"`
	About      string `validate:"required"`
	Fee        int    `validate:"required,gt=0"`
}

// AddDoctor onboards a doctor from a multipart form. The profile image
// is uploaded before the record is persisted; a failed upload never
// leaves a record pointing at a missing object.
func (h *AdminHandler) AddDoctor(c *fiber.Ctx) error {
	fee, err := strconv.Atoi(c.FormValue("fees"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Consultation fee must be a number")
	}

	req := AddDoctorRequest{
		Name:       c.FormValue("name"),
		Email:      c.FormValue("email"),
		Password:   c.FormValue("password"),
		Speciality: c.FormValue("speciality"),
		Degree:     c.FormValue("degree"),
		Experience: c.FormValue("experience"),
		About:      c.FormValue("about"),
		Fee:        fee,
	}
	if err := h.validator.Struct(&req); err != nil {
		h.logger.Warn("invalid add-doctor request", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "All doctor fields are required; password must be at least 8 characters and fee positive")
	}

	var address models.Address
	if v := c.FormValue("address"); v != "" {
		if err := json.Unmarshal([]byte(v), &address); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid address format")
		}
	}

	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Doctor image is required")
	}

	imageURL, err := h.uploader.Upload(c.Context(), file)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to upload doctor image", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Image upload failed")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to add doctor")
	}

	doctor := &models.Doctor{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Email:       req.Email,
		Password:    hash,
		Image:       imageURL,
		Speciality:  req.Speciality,
		Degree:      req.Degree,
		Experience:  req.Experience,
		About:       req.About,
		Available:   true,
		Fee:         req.Fee,
		Address:     address,
		SlotsBooked: models.SlotLedger{},
		CreatedAt:   time.Now(),
	}

	if err := h.store.InsertDoctor(c.Context(), doctor); err != nil {
		if !errors.Is(err, store.ErrDuplicateEmail) {
			h.logger.Error("failed to insert doctor", zap.Error(err))
		}
		return failFromError(c, err)
	}
	h.invalidateList(c)

	h.logger.Info("doctor added",
		zap.String("doctor_id", doctor.ID),
		zap.String("speciality", doctor.Speciality))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Doctor added",
	})
}

func (h *AdminHandler) invalidateList(c *fiber.Ctx) {
	for _, key := range []string{doctorListCacheKey, doctorListAvailableCacheKey} {
		if err := h.cache.Delete(c.Context(), key); err != nil {
			h.logger.Warn("failed to invalidate doctor list cache", zap.Error(err))
		}
	}
}

// AllDoctors returns the full directory for the admin panel. Password
// hashes never serialize; emails stay visible here, unlike the public
// list.
func (h *AdminHandler) AllDoctors(c *fiber.Ctx) error {
	doctors, err := h.store.ListDoctors(c.Context(), false)
	if err != nil {
		h.logger.Error("failed to list doctors", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to load doctors")
	}
	if doctors == nil {
		doctors = []models.Doctor{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"doctors": doctors,
	})
}

func (h *AdminHandler) Appointments(c *fiber.Ctx) error {
	appointments, err := h.store.AllAppointments(c.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", zap.Error(err))
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

func (h *AdminHandler) CancelAppointment(c *fiber.Ctx) error {
	adminID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	actor := booking.Actor{Kind: "admin", ID: adminID}
	if err := h.engine.Cancel(c.Context(), req.AppointmentID, actor); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment cancelled",
	})
}

// ChangeAvailability toggles any doctor's availability flag.
func (h *AdminHandler) ChangeAvailability(c *fiber.Ctx) error {
	var req struct {
		DoctorID string `json:"docId"`
	}
	if err := c.BodyParser(&req); err != nil || req.DoctorID == "" {
		return fail(c, fiber.StatusBadRequest, "docId is required")
	}

	doctor, err := h.store.DoctorByID(c.Context(), req.DoctorID)
	if err != nil {
		return failFromError(c, err)
	}

	if err := h.store.SetDoctorAvailability(c.Context(), req.DoctorID, !doctor.Available); err != nil {
		h.logger.Error("failed to change availability", zap.Error(err))
		return failFromError(c, err)
	}
	h.invalidateList(c)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Availability changed",
	})
}

func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.engine.AdminDashboard(c.Context())
	if err != nil {
		h.logger.Error("failed to compute admin dashboard", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to load dashboard")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"dashData": dashboard,
	})
}
