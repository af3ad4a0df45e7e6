package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusCreated  = "created"
	PaymentStatusCaptured = "captured"
)

// Payment records one gateway order and its eventual capture. It is keyed by
// the gateway order id; JobID and UserID never change after insert.
type Payment struct {
	OrderID    string     `db:"order_id"    json:"orderId"`
	JobID      uuid.UUID  `db:"job_id"      json:"jobId"`
	UserID     string     `db:"user_id"     json:"userId"`
	Amount     int64      `db:"amount"      json:"amount"`
	Currency   string     `db:"currency"    json:"currency"`
	Status     string     `db:"status"      json:"status"`
	PaymentID  *string    `db:"payment_id"  json:"paymentId,omitempty"`
	CreatedAt  time.Time  `db:"created_at"  json:"createdAt"`
	CapturedAt *time.Time `db:"captured_at" json:"capturedAt,omitempty"`
}

// CaptureEvent is the part of a gateway "payment captured" notification the
// reconciler needs. JobID and UserID come from the order notes.
type CaptureEvent struct {
	PaymentID  string
	OrderID    string
	JobID      string
	UserID     string
	Amount     int64
	Currency   string
	Method     string
	CapturedAt time.Time
}

// MajorUnits converts an amount in minor units (paise, cents) to major units.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}
