package handlers

import (
	"encoding/json"
	"time"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/config"
	"github.com/careslot/backend/media"
	"github.com/careslot/backend/models"
	"github.com/careslot/backend/payments"
	"github.com/careslot/backend/store"
	"github.com/careslot/backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type UserHandler struct {
	config    *config.Config
	store     *store.Mongo
	engine    *booking.Engine
	uploader  *media.Uploader
	razorpay  *payments.Razorpay
	stripe    *payments.Stripe
	issuer    *utils.TokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

func NewUserHandler(cfg *config.Config, st *store.Mongo, engine *booking.Engine, uploader *media.Uploader,
	razorpay *payments.Razorpay, stripe *payments.Stripe, issuer *utils.TokenIssuer, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		config:    cfg,
		store:     st,
		engine:    engine,
		uploader:  uploader,
		razorpay:  razorpay,
		stripe:    stripe,
		issuer:    issuer,
		validator: validator.New(),
		logger:    logger,
	}
}

type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("failed to parse registration request", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.Warn("invalid registration request", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Name, a valid email and a password of at least 8 characters are required")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Registration failed")
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.InsertUser(c.Context(), user); err != nil {
		if !errors.Is(err, store.ErrDuplicateEmail) {
			h.logger.Error("failed to insert user", zap.Error(err))
		}
		return failFromError(c, err)
	}

	token, err := h.issuer.Issue(utils.KindUser, user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Registration failed")
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
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

	user, err := h.store.UserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, booking.ErrUserNotFound) {
			return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Error("failed to load user for login", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Login failed")
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := h.issuer.Issue(utils.KindUser, user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Login failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	user, err := h.store.UserByID(c.Context(), userID)
	if err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"userData": user,
	})
}

// UpdateProfile mutates the user's profile from a multipart form. When
// an image is attached it is uploaded first; the record is only updated
// after the upload succeeded.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var update store.UserProfileUpdate
	if v := c.FormValue("name"); v != "" {
		update.Name = &v
	}
	if v := c.FormValue("phone"); v != "" {
		update.Phone = &v
	}
	if v := c.FormValue("gender"); v != "" {
		update.Gender = &v
	}
	if v := c.FormValue("dob"); v != "" {
		update.Dob = &v
	}
	if v := c.FormValue("address"); v != "" {
		var addr models.Address
		if err := json.Unmarshal([]byte(v), &addr); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid address format")
		}
		update.Address = &addr
	}

	if file, err := c.FormFile("image"); err == nil {
		url, err := h.uploader.Upload(c.Context(), file)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			h.logger.Error("failed to upload profile image", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Image upload failed")
		}
		update.Image = &url
	}

	if err := h.store.UpdateUserProfile(c.Context(), userID, update); err != nil {
		if !errors.Is(err, booking.ErrUserNotFound) {
			h.logger.Error("failed to update user profile", zap.Error(err))
		}
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
	})
}

type BookAppointmentRequest struct {
	DoctorID string `json:"docId" validate:"required"`
	SlotDate string `json:"slotDate" validate:"required"`
	SlotTime string `json:"slotTime" validate:"required"`
}

func (h *UserHandler) BookAppointment(c *fiber.Ctx) error {
	userID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req BookAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "docId, slotDate and slotTime are required")
	}
	if !validateSlotDate(req.SlotDate) {
		return fail(c, fiber.StatusBadRequest, "Slot date must be in YYYY-MM-DD format")
	}
	if !validateSlotTime(req.SlotTime) {
		return fail(c, fiber.StatusBadRequest, "Slot time must be in HH:MM format")
	}

	appt, err := h.engine.Book(c.Context(), req.DoctorID, userID, req.SlotDate, req.SlotTime)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotTaken),
			errors.Is(err, booking.ErrDoctorUnavailable),
			errors.Is(err, booking.ErrDoctorNotFound),
			errors.Is(err, booking.ErrUserNotFound):
		default:
			h.logger.Error("booking failed",
				zap.String("doctor_id", req.DoctorID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return failFromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":     true,
		"message":     "Appointment booked",
		"appointment": appt,
	})
}

func (h *UserHandler) ListAppointments(c *fiber.Ctx) error {
	userID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	appointments, err := h.store.AppointmentsByUser(c.Context(), userID)
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

func (h *UserHandler) CancelAppointment(c *fiber.Ctx) error {
	userID, err := principalID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	actor := booking.Actor{Kind: "user", ID: userID}
	if err := h.engine.Cancel(c.Context(), req.AppointmentID, actor); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment cancelled",
	})
}

// PaymentRazorpay creates a Razorpay order for an unpaid, non-cancelled
// appointment and stores the order reference on it.
func (h *UserHandler) PaymentRazorpay(c *fiber.Ctx) error {
	if _, err := principalID(c); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	appt, err := h.engine.PrepareOrder(c.Context(), req.AppointmentID)
	if err != nil {
		return failFromError(c, err)
	}

	orderID, err := h.razorpay.CreateOrder(appt.Amount, appt.ID)
	if err != nil {
		h.logger.Error("failed to create razorpay order",
			zap.String("appointment_id", appt.ID),
			zap.Error(err))
		return fail(c, fiber.StatusBadGateway, "Failed to create payment order")
	}

	if err := h.engine.AttachOrder(c.Context(), appt.ID, models.PaymentOrder{
		Provider: "razorpay",
		OrderID:  orderID,
	}); err != nil {
		h.logger.Error("failed to attach order reference", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to record payment order")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order": fiber.Map{
			"id":       orderID,
			"amount":   appt.Amount * 100,
			"currency": h.config.Currency,
		},
	})
}

// VerifyRazorpay checks the checkout callback signature and the order
// status at the provider, then settles the appointment the order's
// receipt points at.
func (h *UserHandler) VerifyRazorpay(c *fiber.Ctx) error {
	if _, err := principalID(c); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" {
		return fail(c, fiber.StatusBadRequest, "razorpay_order_id is required")
	}

	if req.PaymentID != "" || req.Signature != "" {
		if !h.razorpay.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
			h.logger.Warn("razorpay signature mismatch", zap.String("order_id", req.OrderID))
			return fail(c, fiber.StatusBadRequest, "Payment verification failed")
		}
	}

	appointmentID, err := h.razorpay.VerifyOrderPaid(req.OrderID)
	if err != nil {
		if !errors.Is(err, payments.ErrVerificationFailed) {
			h.logger.Error("failed to verify razorpay order", zap.Error(err))
		}
		return failFromError(c, err)
	}

	if err := h.engine.SettlePayment(c.Context(), appointmentID); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment successful",
	})
}

// PaymentStripe creates a hosted checkout session for the appointment.
func (h *UserHandler) PaymentStripe(c *fiber.Ctx) error {
	if _, err := principalID(c); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId is required")
	}

	appt, err := h.engine.PrepareOrder(c.Context(), req.AppointmentID)
	if err != nil {
		return failFromError(c, err)
	}

	sessionID, sessionURL, err := h.stripe.CreateCheckoutSession(appt.Amount, appt.ID)
	if err != nil {
		h.logger.Error("failed to create stripe session",
			zap.String("appointment_id", appt.ID),
			zap.Error(err))
		return fail(c, fiber.StatusBadGateway, "Failed to create payment session")
	}

	if err := h.engine.AttachOrder(c.Context(), appt.ID, models.PaymentOrder{
		Provider: "stripe",
		OrderID:  sessionID,
	}); err != nil {
		h.logger.Error("failed to attach order reference", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to record payment order")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"session_url": sessionURL,
	})
}

// VerifyStripe confirms the checkout session was paid and settles the
// appointment named in the session metadata.
func (h *UserHandler) VerifyStripe(c *fiber.Ctx) error {
	if _, err := principalID(c); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return fail(c, fiber.StatusBadRequest, "session_id is required")
	}

	appointmentID, err := h.stripe.VerifySession(req.SessionID)
	if err != nil {
		if !errors.Is(err, payments.ErrVerificationFailed) {
			h.logger.Error("failed to verify stripe session", zap.Error(err))
		}
		return failFromError(c, err)
	}

	if err := h.engine.SettlePayment(c.Context(), appointmentID); err != nil {
		return failFromError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment successful",
	})
}
