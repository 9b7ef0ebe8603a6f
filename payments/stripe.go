package payments

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"go.uber.org/zap"
)

// Stripe is the secondary payment-gateway adapter, using hosted
// checkout sessions. The appointment id travels in session metadata.
type Stripe struct {
	currency     string
	clientOrigin string
	logger       *zap.Logger
}

func NewStripe(secretKey, currency, clientOrigin string, logger *zap.Logger) *Stripe {
	stripe.Key = secretKey
	return &Stripe{
		currency:     currency,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// CreateCheckoutSession creates a hosted checkout session for the
// appointment fee and returns the session id and redirect URL.
func (s *Stripe) CreateCheckoutSession(amount int, appointmentID string) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(fmt.Sprintf("%s/verify?success=true&session_id={CHECKOUT_SESSION_ID}", s.clientOrigin)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/verify?success=false&appointmentId=%s", s.clientOrigin, appointmentID)),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Appointment fee"),
					},
					UnitAmount: stripe.Int64(int64(amount) * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("appointment_id", appointmentID)

	sess, err := session.New(params)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create stripe checkout session")
	}

	s.logger.Info("stripe checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("appointment_id", appointmentID),
		zap.Int("amount", amount))

	return sess.ID, sess.URL, nil
}

// VerifySession fetches the checkout session and confirms it was paid.
// Returns the appointment id from the session metadata.
func (s *Stripe) VerifySession(sessionID string) (string, error) {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch stripe checkout session")
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Warn("stripe session not paid",
			zap.String("session_id", sessionID),
			zap.String("payment_status", string(sess.PaymentStatus)))
		return "", ErrVerificationFailed
	}

	appointmentID := sess.Metadata["appointment_id"]
	if appointmentID == "" {
		return "", errors.New("stripe session missing appointment metadata")
	}

	return appointmentID, nil
}
