package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/billing"
	"github.com/kiranshivaraju/reportgate/internal/gateway"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookReconciler defines the interface the webhook handler depends on.
type WebhookReconciler interface {
	ReconcileWebhook(ctx context.Context, body []byte, signature string) (billing.Outcome, error)
}

// NewRazorpayWebhookHandler returns an http.HandlerFunc for POST /api/v1/webhooks/razorpay.
// The body is read raw because the signature covers the exact bytes sent.
// 4xx tells the gateway not to retry; 5xx asks it to redeliver.
func NewRazorpayWebhookHandler(svc WebhookReconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			response.PlainText(w, http.StatusBadRequest, "Unreadable request body.")
			return
		}

		outcome, err := svc.ReconcileWebhook(r.Context(), body, r.Header.Get(gateway.SignatureHeader))
		switch {
		case err == nil:
			slog.Debug("webhook acknowledged", "outcome", outcome)
			response.PlainText(w, http.StatusOK, "Webhook processed.")
		case errors.Is(err, billing.ErrInvalidSignature):
			slog.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
			response.PlainText(w, http.StatusBadRequest, "Invalid signature")
		case errors.Is(err, billing.ErrMalformedPayload):
			slog.Warn("malformed webhook payload", "error", err)
			response.PlainText(w, http.StatusBadRequest, "Malformed payload.")
		default:
			response.PlainText(w, http.StatusInternalServerError, "Webhook processing failed.")
		}
	}
}
