package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reportgate/internal/store"
	"github.com/kiranshivaraju/reportgate/internal/store/memory"
	"github.com/kiranshivaraju/reportgate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *memory.Store) (*models.Job, *models.Payment) {
	t.Helper()
	ctx := context.Background()
	url := "https://files.example.com/cv.pdf"
	job := &models.Job{
		OwnerID:         "user-1",
		FileURL:         &url,
		Filename:        "cv.pdf",
		Status:          models.JobStatusPending,
		PriceMinorUnits: 900,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.CreateJob(ctx, job))

	p := &models.Payment{
		OrderID:   "order_1",
		JobID:     job.ID,
		UserID:    "user-1",
		Amount:    900,
		Currency:  "INR",
		Status:    models.PaymentStatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreatePayment(ctx, p))
	return job, p
}

func TestCreateJob_AssignsID(t *testing.T) {
	s := memory.New()
	job, _ := seed(t, s)
	assert.NotEqual(t, uuid.Nil, job.ID)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
}

func TestGetJob_NotFound(t *testing.T) {
	_, err := memory.New().GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreatePayment_Duplicate(t *testing.T) {
	s := memory.New()
	_, p := seed(t, s)

	err := s.CreatePayment(context.Background(), p)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := memory.New()
	job, p := seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MarkPaymentCaptured(ctx, p.OrderID, "pay_1", time.Now()); err != nil {
			return err
		}
		return tx.UnlockJob(ctx, job.ID, models.PaymentDetails{PaymentID: "pay_1", OrderID: p.OrderID})
	})
	require.NoError(t, err)

	gotJob, _ := s.GetJob(ctx, job.ID)
	assert.True(t, gotJob.Unlocked)
	require.NotNil(t, gotJob.PaymentDetails)
	assert.Equal(t, "pay_1", gotJob.PaymentDetails.PaymentID)

	gotPayment, _ := s.GetPayment(ctx, p.OrderID)
	assert.Equal(t, models.PaymentStatusCaptured, gotPayment.Status)
	assert.Equal(t, 1, s.WriteCommits())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := memory.New()
	job, p := seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.MarkPaymentCaptured(ctx, p.OrderID, "pay_1", time.Now()))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	gotJob, _ := s.GetJob(ctx, job.ID)
	assert.False(t, gotJob.Unlocked)
	gotPayment, _ := s.GetPayment(ctx, p.OrderID)
	assert.Equal(t, models.PaymentStatusCreated, gotPayment.Status)
	assert.Equal(t, 0, s.WriteCommits())
}

func TestWithTx_ReadsOwnWrites(t *testing.T) {
	s := memory.New()
	job, _ := seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.UnlockJob(ctx, job.ID, models.PaymentDetails{}))
		j, err := tx.GetJobForUpdate(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, j.Unlocked)
		return nil
	})
	require.NoError(t, err)
}

func TestUnlockJob_AlreadyUnlocked(t *testing.T) {
	s := memory.New()
	job, _ := seed(t, s)
	ctx := context.Background()

	unlock := func(tx store.Tx) error { return tx.UnlockJob(ctx, job.ID, models.PaymentDetails{}) }
	require.NoError(t, s.WithTx(ctx, unlock))
	assert.ErrorIs(t, s.WithTx(ctx, unlock), store.ErrNotFound)
}

func TestListPaymentsByJob_Ordered(t *testing.T) {
	s := memory.New()
	job, first := seed(t, s)
	ctx := context.Background()

	second := &models.Payment{
		OrderID:   "order_2",
		JobID:     job.ID,
		UserID:    "user-1",
		Amount:    900,
		Currency:  "INR",
		Status:    models.PaymentStatusCreated,
		CreatedAt: first.CreatedAt.Add(time.Minute),
	}
	require.NoError(t, s.CreatePayment(ctx, second))

	got, err := s.ListPaymentsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "order_1", got[0].OrderID)
	assert.Equal(t, "order_2", got[1].OrderID)
}
