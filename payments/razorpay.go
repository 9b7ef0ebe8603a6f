package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// ErrVerificationFailed is returned when a provider's signature or
// status check does not pass.
var ErrVerificationFailed = errors.New("payment verification failed")

// Razorpay is the primary payment-gateway adapter. Orders carry the
// appointment id as receipt so verification can reconcile them back.
type Razorpay struct {
	client    *razorpay.Client
	keySecret string
	currency  string
	logger    *zap.Logger
}

func NewRazorpay(keyID, keySecret, currency string, logger *zap.Logger) *Razorpay {
	return &Razorpay{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder creates a payment order for the given amount in currency
// units and returns the provider's order id. Razorpay expects minor
// units (paise).
func (r *Razorpay) CreateOrder(amount int, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   amount * 100,
		"currency": r.currency,
		"receipt":  receipt,
	}

	body, err := r.client.Order.Create(data, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create razorpay order")
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", errors.New("razorpay order response missing id")
	}

	r.logger.Info("razorpay order created",
		zap.String("order_id", orderID),
		zap.String("receipt", receipt),
		zap.Int("amount", amount))

	return orderID, nil
}

// VerifySignature checks the checkout callback signature:
// HMAC-SHA256(order_id|payment_id) with the key secret.
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(r.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyOrderPaid fetches the order from the provider and confirms its
// status is paid. Returns the receipt (the appointment id) so the
// caller can settle the right record.
func (r *Razorpay) VerifyOrderPaid(orderID string) (string, error) {
	body, err := r.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch razorpay order")
	}

	status, _ := body["status"].(string)
	if status != "paid" {
		r.logger.Warn("razorpay order not paid",
			zap.String("order_id", orderID),
			zap.String("status", status))
		return "", ErrVerificationFailed
	}

	receipt, ok := body["receipt"].(string)
	if !ok || receipt == "" {
		return "", errors.New("razorpay order response missing receipt")
	}

	return receipt, nil
}
