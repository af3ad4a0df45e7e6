package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/reportgate/internal/store"
	"github.com/kiranshivaraju/reportgate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reportgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newJob(owner string) *models.Job {
	now := time.Now().UTC().Truncate(time.Microsecond)
	url := "https://files.example.com/" + uuid.NewString() + ".pdf"
	return &models.Job{
		OwnerID:         owner,
		FileURL:         &url,
		Filename:        "cv.pdf",
		Status:          models.JobStatusPending,
		PriceMinorUnits: 900,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newPayment(orderID string, job *models.Job) *models.Payment {
	return &models.Payment{
		OrderID:   orderID,
		JobID:     job.ID,
		UserID:    job.OwnerID,
		Amount:    job.PriceMinorUnits,
		Currency:  "INR",
		Status:    models.PaymentStatusCreated,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	assert.NotEqual(t, uuid.Nil, job.ID)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, int64(900), got.PriceMinorUnits)
	assert.False(t, got.Unlocked)
	assert.Nil(t, got.PaymentDetails)
	assert.Nil(t, got.FullReport)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_RequiresInputReference(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	job := newJob("user-1")
	job.FileURL = nil
	err := s.CreateJob(context.Background(), job)
	assert.Error(t, err)
}

// --- Payment Tests ---

func TestPayment_CreateGetList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order_A", job)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order_B", job)))

	got, err := s.GetPayment(ctx, "order_A")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.JobID)
	assert.Equal(t, models.PaymentStatusCreated, got.Status)
	assert.Nil(t, got.PaymentID)

	list, err := s.ListPaymentsByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPayment_DuplicateOrderID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order_dup", job)))

	err := s.CreatePayment(ctx, newPayment("order_dup", job))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestPayment_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetPayment(context.Background(), "order_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Transaction Tests ---

func TestWithTx_CaptureAndUnlock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order_tx", job)))

	paidAt := time.Unix(1700000000, 0).UTC()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetPaymentForUpdate(ctx, "order_tx"); err != nil {
			return err
		}
		if _, err := tx.GetJobForUpdate(ctx, job.ID); err != nil {
			return err
		}
		if err := tx.MarkPaymentCaptured(ctx, "order_tx", "pay_tx", paidAt); err != nil {
			return err
		}
		return tx.UnlockJob(ctx, job.ID, models.PaymentDetails{
			PaymentID: "pay_tx", OrderID: "order_tx", Amount: 9, Currency: "INR", Method: "upi", PaidAt: paidAt,
		})
	})
	require.NoError(t, err)

	gotJob, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, gotJob.Unlocked)
	require.NotNil(t, gotJob.PaymentDetails)
	assert.Equal(t, "pay_tx", gotJob.PaymentDetails.PaymentID)
	assert.Equal(t, 9.0, gotJob.PaymentDetails.Amount)
	assert.True(t, paidAt.Equal(gotJob.PaymentDetails.PaidAt))

	gotPayment, err := s.GetPayment(ctx, "order_tx")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCaptured, gotPayment.Status)
	require.NotNil(t, gotPayment.PaymentID)
	assert.Equal(t, "pay_tx", *gotPayment.PaymentID)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UnlockJob(ctx, job.ID, models.PaymentDetails{PaymentID: "p"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.Unlocked)
}

func TestWithTx_UnlockIsConditional(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	unlock := func(tx store.Tx) error { return tx.UnlockJob(ctx, job.ID, models.PaymentDetails{PaymentID: "p"}) }
	require.NoError(t, s.WithTx(ctx, unlock))
	assert.ErrorIs(t, s.WithTx(ctx, unlock), store.ErrNotFound)
}

func TestWithTx_ConcurrentUnlockHasOneWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool, store.WithTxMaxRetries(10))
	ctx := context.Background()

	job := newJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var wrote bool
			err := s.WithTx(ctx, func(tx store.Tx) error {
				wrote = false
				j, err := tx.GetJobForUpdate(ctx, job.ID)
				if err != nil {
					return err
				}
				if j.Unlocked {
					return nil
				}
				wrote = true
				return tx.UnlockJob(ctx, job.ID, models.PaymentDetails{PaymentID: "p"})
			})
			assert.NoError(t, err)
			if wrote {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	assert.NoError(t, s.Ping(context.Background()))
}
