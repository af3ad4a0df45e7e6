// Package models contains shared data models used across the reportgate codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DefaultProfileFilename is used when a job is created from a profile URL without a filename.
const DefaultProfileFilename = "LinkedIn Profile"

// Job is a unit of requested analysis work owned by a principal and gated by payment.
// Unlocked moves from false to true at most once, together with PaymentDetails.
type Job struct {
	ID              uuid.UUID       `db:"id"                json:"id"`
	OwnerID         string          `db:"owner_id"          json:"ownerId"`
	FileURL         *string         `db:"file_url"          json:"fileUrl,omitempty"`
	Filename        string          `db:"filename"          json:"filename"`
	ProfileURL      *string         `db:"profile_url"       json:"profileUrl,omitempty"`
	Status          string          `db:"status"            json:"status"`
	PriceMinorUnits int64           `db:"price_minor_units" json:"priceMinorUnits"`
	Unlocked        bool            `db:"unlocked"          json:"unlocked"`
	PaymentDetails  *PaymentDetails `db:"payment_details"   json:"paymentDetails,omitempty"`
	Preview         *string         `db:"preview"           json:"preview"`
	FullReport      *string         `db:"full_report"       json:"fullReport"`
	RetryCount      int             `db:"retry_count"       json:"retryCount"`
	ErrorMessage    *string         `db:"error_message"     json:"error"`
	CreatedAt       time.Time       `db:"created_at"        json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at"        json:"updatedAt"`
}

// PaymentDetails is the summary of the capture that unlocked a job.
// Amount is in major currency units.
type PaymentDetails struct {
	PaymentID string    `json:"paymentId"`
	OrderID   string    `json:"orderId"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paidAt"`
}
