package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrTxConflict is returned by WithTx when a transaction kept losing
// serialization races and the retry budget ran out.
var ErrTxConflict = errors.New("transaction conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob inserts a job, assigning its ID when job.ID is uuid.Nil.
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, orderID string) (*models.Payment, error)
	ListPaymentsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Payment, error)

	// WithTx runs fn inside one serializable transaction and commits when fn
	// returns nil. fn may be invoked more than once if the transaction has to be
	// retried, so it must not keep side effects outside tx between attempts.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the read-modify-write surface available inside WithTx. The Get
// methods lock the rows they return until the transaction ends.
type Tx interface {
	GetJobForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetPaymentForUpdate(ctx context.Context, orderID string) (*models.Payment, error)
	MarkPaymentCaptured(ctx context.Context, orderID, paymentID string, capturedAt time.Time) error
	UnlockJob(ctx context.Context, id uuid.UUID, details models.PaymentDetails) error
}
