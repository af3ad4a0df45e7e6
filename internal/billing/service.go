// Package billing ties jobs to payments: it creates jobs, opens gateway
// orders for them and reconciles gateway webhooks into a one-time unlock.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reportgate/internal/cache"
	"github.com/kiranshivaraju/reportgate/internal/events"
	"github.com/kiranshivaraju/reportgate/internal/gateway"
	"github.com/kiranshivaraju/reportgate/internal/store"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

const (
	defaultPriceMinorUnits = 900
	defaultCurrency        = "INR"
	defaultTxTimeout       = 5 * time.Second
	defaultGatewayTimeout  = 10 * time.Second
	defaultProcessedTTL    = 24 * time.Hour
	publishTimeout         = 5 * time.Second
)

// Config holds the service settings that are not collaborators.
type Config struct {
	WebhookSecret   string
	PriceMinorUnits int64
	Currency        string
	TxTimeout       time.Duration
	GatewayTimeout  time.Duration
	ProcessedTTL    time.Duration
}

// Service implements job creation, order creation and webhook reconciliation.
type Service struct {
	cfg       Config
	store     store.Store
	gateway   gateway.Gateway
	cache     cache.Cache
	publisher events.Publisher
	now       func() time.Time
}

// NewService creates a Service. cache may be nil, in which case the
// processed-webhook fast path is disabled. A nil publisher drops events.
func NewService(cfg Config, st store.Store, gw gateway.Gateway, c cache.Cache, pub events.Publisher) *Service {
	if cfg.PriceMinorUnits <= 0 {
		cfg.PriceMinorUnits = defaultPriceMinorUnits
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = defaultProcessedTTL
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		gateway:   gw,
		cache:     c,
		publisher: pub,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJobInput is the caller-supplied part of a new job.
type CreateJobInput struct {
	FileURL    string
	Filename   string
	ProfileURL string
}

// CreateJob stores a new locked job owned by principal.
func (s *Service) CreateJob(ctx context.Context, principal string, in CreateJobInput) (*models.Job, error) {
	if principal == "" {
		return nil, ErrUnauthenticated
	}

	fileURL := strings.TrimSpace(in.FileURL)
	profileURL := strings.TrimSpace(in.ProfileURL)
	filename := strings.TrimSpace(in.Filename)

	if fileURL == "" && profileURL == "" {
		return nil, fmt.Errorf("%w: fileUrl or profileUrl is required", ErrInvalidArgument)
	}
	if profileURL != "" && !isHTTPURL(profileURL) {
		return nil, fmt.Errorf("%w: profileUrl must be an absolute http(s) URL", ErrInvalidArgument)
	}

	if filename == "" {
		if fileURL != "" {
			filename = filenameFromURL(fileURL)
		} else {
			filename = models.DefaultProfileFilename
		}
	}

	now := s.now()
	job := &models.Job{
		OwnerID:         principal,
		FileURL:         optional(fileURL),
		Filename:        filename,
		ProfileURL:      optional(profileURL),
		Status:          models.JobStatusPending,
		PriceMinorUnits: s.cfg.PriceMinorUnits,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	if err := s.store.CreateJob(storeCtx, job); err != nil {
		slog.Error("failed to create job", "owner_id", principal, "error", err)
		return nil, fmt.Errorf("%w: creating job: %v", ErrUnavailable, err)
	}

	slog.Info("job created", "job_id", job.ID, "owner_id", principal)
	return job, nil
}

// GetJob returns a job visible to principal.
func (s *Service) GetJob(ctx context.Context, principal, jobID string) (*models.Job, error) {
	if principal == "" {
		return nil, ErrUnauthenticated
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != principal {
		return nil, ErrPermissionDenied
	}
	return job, nil
}

// OrderResult is what a client needs to open the gateway checkout.
type OrderResult struct {
	Order *gateway.Order
	KeyID string
}

// CreateOrder opens a gateway order for a locked job and records it as a
// created Payment. Nothing is written when the gateway call fails.
func (s *Service) CreateOrder(ctx context.Context, principal, jobID string) (*OrderResult, error) {
	if principal == "" {
		return nil, ErrUnauthenticated
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != principal {
		return nil, ErrPermissionDenied
	}
	if job.Unlocked {
		return nil, fmt.Errorf("%w: job is already unlocked", ErrFailedPrecondition)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(gwCtx, gateway.OrderRequest{
		Amount:   job.PriceMinorUnits,
		Currency: s.cfg.Currency,
		Receipt:  "receipt_job_" + job.ID.String(),
		Notes: map[string]string{
			"jobId":  job.ID.String(),
			"userId": principal,
		},
	})
	if err != nil {
		slog.Error("gateway order creation failed", "job_id", job.ID, "error", err)
		return nil, fmt.Errorf("%w: creating gateway order: %v", ErrUnavailable, err)
	}

	payment := &models.Payment{
		OrderID:   order.ID,
		JobID:     job.ID,
		UserID:    principal,
		Amount:    job.PriceMinorUnits,
		Currency:  s.cfg.Currency,
		Status:    models.PaymentStatusCreated,
		CreatedAt: s.now(),
	}

	storeCtx, cancelStore := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancelStore()

	if err := s.store.CreatePayment(storeCtx, payment); err != nil {
		slog.Error("failed to record payment", "job_id", job.ID, "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: recording payment: %v", ErrUnavailable, err)
	}

	slog.Info("order created", "job_id", job.ID, "order_id", order.ID, "amount", payment.Amount)
	return &OrderResult{Order: order, KeyID: s.gateway.KeyID()}, nil
}

// ListPayments returns every payment attempt recorded for a job, oldest first.
func (s *Service) ListPayments(ctx context.Context, jobID string) ([]*models.Payment, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	payments, err := s.store.ListPaymentsByJob(storeCtx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing payments: %v", ErrUnavailable, err)
	}
	return payments, nil
}

func (s *Service) loadJob(ctx context.Context, jobID string) (*models.Job, error) {
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil {
		return nil, fmt.Errorf("%w: jobId must be a UUID", ErrInvalidArgument)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	job, err := s.store.GetJob(storeCtx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading job: %v", ErrUnavailable, err)
	}
	return job, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func filenameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return raw
}
