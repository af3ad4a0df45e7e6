package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

const (
	jobColumns = `id, owner_id, file_url, filename, profile_url, status, price_minor_units, unlocked,
		payment_details, preview, full_report, retry_count, error_message, created_at, updated_at`
	paymentColumns = `order_id, job_id, user_id, amount, currency, status, payment_id, created_at, captured_at`

	defaultTxMaxRetries = 3
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool         *pgxpool.Pool
	txMaxRetries int
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithTxMaxRetries sets how many times WithTx retries after a serialization failure.
func WithTxMaxRetries(n int) Option {
	return func(s *PostgresStore) {
		if n >= 0 {
			s.txMaxRetries = n
		}
	}
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	s := &PostgresStore{pool: pool, txMaxRetries: defaultTxMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, file_url, filename, profile_url, status, price_minor_units, unlocked,
		                   preview, full_report, retry_count, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, job.OwnerID, job.FileURL, job.Filename, job.ProfileURL, job.Status, job.PriceMinorUnits,
		job.Unlocked, job.Preview, job.FullReport, job.RetryCount, job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return getJob(ctx, s.pool, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
}

func getJob(ctx context.Context, q querier, query string, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := q.QueryRow(ctx, query, id).Scan(&j.ID, &j.OwnerID, &j.FileURL, &j.Filename, &j.ProfileURL,
		&j.Status, &j.PriceMinorUnits, &j.Unlocked, &j.PaymentDetails, &j.Preview, &j.FullReport,
		&j.RetryCount, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// --- Payments ---

func (s *PostgresStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payments (order_id, job_id, user_id, amount, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.OrderID, p.JobID, p.UserID, p.Amount, p.Currency, p.Status, p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	return getPayment(ctx, s.pool, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
}

func (s *PostgresStore) ListPaymentsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list payments by job: %w", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.OrderID, &p.JobID, &p.UserID, &p.Amount, &p.Currency, &p.Status,
			&p.PaymentID, &p.CreatedAt, &p.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func getPayment(ctx context.Context, q querier, query string, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := q.QueryRow(ctx, query, orderID).Scan(&p.OrderID, &p.JobID, &p.UserID, &p.Amount, &p.Currency,
		&p.Status, &p.PaymentID, &p.CreatedAt, &p.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// --- Transactions ---

// WithTx runs fn in a SERIALIZABLE transaction. Serialization failures and
// deadlocks are retried with exponential backoff up to txMaxRetries times.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(&pgTx{tx: tx})
		})
		if err == nil {
			return nil
		}
		if isSerializationFailure(err) {
			slog.Warn("transaction serialization failure, retrying", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.txMaxRetries)), ctx)

	err := backoff.Retry(op, b)
	if err != nil && isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetJobForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return getJob(ctx, t.tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) GetPaymentForUpdate(ctx context.Context, orderID string) (*models.Payment, error) {
	return getPayment(ctx, t.tx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID)
}

func (t *pgTx) MarkPaymentCaptured(ctx context.Context, orderID, paymentID string, capturedAt time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payments SET status = $2, payment_id = $3, captured_at = $4
		 WHERE order_id = $1 AND status = $5`,
		orderID, models.PaymentStatusCaptured, paymentID, capturedAt, models.PaymentStatusCreated)
	if err != nil {
		return fmt.Errorf("mark payment captured: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UnlockJob(ctx context.Context, id uuid.UUID, details models.PaymentDetails) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE jobs SET unlocked = TRUE, payment_details = $2, updated_at = NOW()
		 WHERE id = $1 AND unlocked = FALSE`,
		id, details)
	if err != nil {
		return fmt.Errorf("unlock job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isSerializationFailure reports whether err is a retryable transaction conflict.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
