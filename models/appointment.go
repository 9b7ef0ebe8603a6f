package models

import "time"

// PaymentOrder references the external payment order created for an
// appointment. Only the most recent order is kept; the settled flag on
// the appointment is what matters downstream.
type PaymentOrder struct {
	Provider string `json:"provider" bson:"provider"`
	OrderID  string `json:"order_id" bson:"order_id"`
}

// Appointment is the join artifact between a user and a doctor. The
// slot fields and snapshots are immutable after creation; only the
// status flags and the payment-order reference mutate.
type Appointment struct {
	ID       string `json:"_id" bson:"_id"`
	UserID   string `json:"user_id" bson:"user_id"`
	DoctorID string `json:"doc_id" bson:"doc_id"`

	SlotDate string `json:"slot_date" bson:"slot_date"`
	SlotTime string `json:"slot_time" bson:"slot_time"`

	UserData   UserSnapshot   `json:"user_data" bson:"user_data"`
	DoctorData DoctorSnapshot `json:"doc_data" bson:"doc_data"`
	Amount     int            `json:"amount" bson:"amount"`

	Cancelled      bool          `json:"cancelled" bson:"cancelled"`
	PaymentSettled bool          `json:"payment" bson:"payment"`
	Completed      bool          `json:"is_completed" bson:"is_completed"`
	Order          *PaymentOrder `json:"order,omitempty" bson:"order,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
