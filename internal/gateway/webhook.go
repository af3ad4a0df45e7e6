package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/reportgate/pkg/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// EventPaymentCaptured is the only event type that changes state.
const EventPaymentCaptured = "payment.captured"

// ErrMalformedWebhook is returned when a body cannot be decoded as an event.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// ComputeSignature returns the hex HMAC-SHA256 of body under secret.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
// The comparison runs in constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// WebhookEvent is a decoded delivery. Capture is set only for
// payment.captured events and carries whatever fields were present; callers
// decide which missing fields are fatal.
type WebhookEvent struct {
	Event   string
	Capture *models.CaptureEvent
}

// ParseWebhook decodes a raw webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedWebhook)
	}

	ev := &WebhookEvent{Event: env.Event}
	if env.Event != EventPaymentCaptured {
		return ev, nil
	}

	p := env.Payload.Payment.Entity
	notes, err := decodeNotes(p.Notes)
	if err != nil {
		return nil, err
	}
	ev.Capture = &models.CaptureEvent{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		JobID:      notes["jobId"],
		UserID:     notes["userId"],
		Amount:     p.Amount,
		Currency:   p.Currency,
		Method:     p.Method,
	}
	if p.CreatedAt > 0 {
		ev.Capture.CapturedAt = time.Unix(p.CreatedAt, 0).UTC()
	}
	return ev, nil
}

// decodeNotes accepts the object form and the empty-array form the gateway
// sends when an entity has no notes.
func decodeNotes(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return map[string]string{}, nil
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, fmt.Errorf("%w: notes: %v", ErrMalformedWebhook, err)
	}
	out := make(map[string]string, len(notes))
	for k, v := range notes {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Method    string          `json:"method"`
	Notes     json.RawMessage `json:"notes"`
	CreatedAt int64           `json:"created_at"`
}
