package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reportgate/internal/events"
	"github.com/kiranshivaraju/reportgate/internal/gateway"
	"github.com/kiranshivaraju/reportgate/internal/store"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

// Outcome describes what a successfully handled webhook did.
type Outcome string

const (
	OutcomeUnlocked        Outcome = "unlocked"
	OutcomeAlreadyUnlocked Outcome = "already_unlocked"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeSkippedEvent    Outcome = "skipped_event"
)

// ReconcileWebhook authenticates a raw webhook body and, for a captured
// payment, marks the Payment captured and unlocks its Job in one
// transaction. Redeliveries and concurrent deliveries unlock at most once.
//
// A nil error means the delivery should be acknowledged. ErrInvalidSignature
// and ErrMalformedPayload are permanent; ErrUnavailable asks for a retry.
func (s *Service) ReconcileWebhook(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if !gateway.VerifySignature(body, signature, s.cfg.WebhookSecret) {
		return "", ErrInvalidSignature
	}

	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ev.Event != gateway.EventPaymentCaptured {
		slog.Info("webhook event skipped", "event", ev.Event)
		return OutcomeSkippedEvent, nil
	}

	capture := ev.Capture
	if capture.OrderID == "" || capture.JobID == "" || capture.UserID == "" {
		return "", fmt.Errorf("%w: order_id, notes.jobId and notes.userId are required", ErrMalformedPayload)
	}
	jobID, err := uuid.Parse(capture.JobID)
	if err != nil {
		return "", fmt.Errorf("%w: notes.jobId is not a UUID", ErrMalformedPayload)
	}

	log := slog.With("order_id", capture.OrderID, "payment_id", capture.PaymentID, "job_id", jobID)

	if s.alreadyProcessed(ctx, capture.PaymentID) {
		log.Info("webhook already processed")
		return OutcomeAlreadyUnlocked, nil
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	var outcome Outcome
	err = s.store.WithTx(txCtx, func(tx store.Tx) error {
		var txErr error
		outcome, txErr = s.applyCapture(txCtx, tx, jobID, capture, log)
		return txErr
	})
	if err != nil {
		log.Error("webhook reconciliation failed", "error", err)
		return "", fmt.Errorf("%w: reconciling payment: %v", ErrUnavailable, err)
	}

	switch outcome {
	case OutcomeUnlocked:
		log.Info("job unlocked", "amount", capture.Amount)
		s.publishUnlocked(ctx, jobID, capture, log)
		s.markProcessed(ctx, capture.PaymentID)
	case OutcomeAlreadyUnlocked:
		log.Info("job already unlocked")
		s.markProcessed(ctx, capture.PaymentID)
	}
	return outcome, nil
}

// applyCapture runs inside the transaction and may be retried, so it keeps
// no state outside its return values.
func (s *Service) applyCapture(ctx context.Context, tx store.Tx, jobID uuid.UUID, c *models.CaptureEvent, log *slog.Logger) (Outcome, error) {
	payment, err := tx.GetPaymentForUpdate(ctx, c.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook for unknown order ignored")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	job, err := tx.GetJobForUpdate(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook for unknown job ignored")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if job.Unlocked {
		return OutcomeAlreadyUnlocked, nil
	}

	if payment.JobID != jobID || payment.UserID != c.UserID || job.OwnerID != c.UserID {
		log.Warn("webhook linkage mismatch ignored",
			"payment_job_id", payment.JobID,
			"payment_user_id", payment.UserID,
			"job_owner_id", job.OwnerID,
			"notes_user_id", c.UserID,
		)
		return OutcomeIgnored, nil
	}

	if payment.Status != models.PaymentStatusCreated {
		log.Warn("webhook for non-open payment ignored", "status", payment.Status)
		return OutcomeIgnored, nil
	}

	amount := payment.Amount
	if c.Amount != 0 {
		if c.Amount != payment.Amount {
			log.Warn("webhook amount differs from order", "expected", payment.Amount, "got", c.Amount)
		}
		amount = c.Amount
	}

	capturedAt := c.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}

	if err := tx.MarkPaymentCaptured(ctx, c.OrderID, c.PaymentID, capturedAt); err != nil {
		return "", fmt.Errorf("marking payment captured: %w", err)
	}

	currency := c.Currency
	if currency == "" {
		currency = payment.Currency
	}
	err = tx.UnlockJob(ctx, jobID, models.PaymentDetails{
		PaymentID: c.PaymentID,
		OrderID:   c.OrderID,
		Amount:    models.MajorUnits(amount),
		Currency:  currency,
		Method:    c.Method,
		PaidAt:    capturedAt,
	})
	if err != nil {
		return "", fmt.Errorf("unlocking job: %w", err)
	}
	return OutcomeUnlocked, nil
}

func (s *Service) alreadyProcessed(ctx context.Context, paymentID string) bool {
	if s.cache == nil || paymentID == "" {
		return false
	}
	seen, err := s.cache.IsWebhookProcessed(ctx, paymentID)
	if err != nil {
		slog.Warn("processed-webhook lookup failed", "payment_id", paymentID, "error", err)
		return false
	}
	return seen
}

func (s *Service) markProcessed(ctx context.Context, paymentID string) {
	if s.cache == nil || paymentID == "" {
		return
	}
	if err := s.cache.MarkWebhookProcessed(ctx, paymentID, s.cfg.ProcessedTTL); err != nil {
		slog.Warn("failed to mark webhook processed", "payment_id", paymentID, "error", err)
	}
}

func (s *Service) publishUnlocked(ctx context.Context, jobID uuid.UUID, c *models.CaptureEvent, log *slog.Logger) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishJobUnlocked(pubCtx, events.JobUnlocked{
		JobID:      jobID.String(),
		UserID:     c.UserID,
		OrderID:    c.OrderID,
		PaymentID:  c.PaymentID,
		Amount:     c.Amount,
		Currency:   c.Currency,
		UnlockedAt: s.now(),
	})
	if err != nil {
		log.Error("failed to publish job unlocked event", "error", err)
	}
}
