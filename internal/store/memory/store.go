// Package memory provides an in-process implementation of store.Store.
//
// Transactions are serialized behind a single mutex and staged in an overlay
// that is merged only on commit, which gives the same observable semantics as
// a SERIALIZABLE database transaction. It backs unit tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reportgate/internal/store"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

// Store is an in-memory store.Store. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	payments map[string]*models.Payment
	commits  int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[uuid.UUID]*models.Job),
		payments: make(map[string]*models.Payment),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *Store) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.OrderID]; ok {
		return store.ErrDuplicateKey
	}
	if _, ok := s.jobs[p.JobID]; !ok {
		return store.ErrNotFound
	}
	s.payments[p.OrderID] = clonePayment(p)
	return nil
}

func (s *Store) GetPayment(_ context.Context, orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePayment(p), nil
}

func (s *Store) ListPaymentsByJob(_ context.Context, jobID uuid.UUID) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*models.Payment{}
	for _, p := range s.payments {
		if p.JobID == jobID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

// WithTx holds the store lock for the duration of fn and applies the staged
// writes only when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:        s,
		jobs:     make(map[uuid.UUID]*models.Job),
		payments: make(map[string]*models.Payment),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, j := range tx.jobs {
		s.jobs[id] = j
	}
	for id, p := range tx.payments {
		s.payments[id] = p
	}
	if len(tx.jobs) > 0 || len(tx.payments) > 0 {
		s.commits++
	}
	return nil
}

// WriteCommits returns how many transactions committed at least one write.
func (s *Store) WriteCommits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type memTx struct {
	s        *Store
	jobs     map[uuid.UUID]*models.Job
	payments map[string]*models.Payment
}

func (t *memTx) job(id uuid.UUID) (*models.Job, bool) {
	if j, ok := t.jobs[id]; ok {
		return j, true
	}
	j, ok := t.s.jobs[id]
	return j, ok
}

func (t *memTx) payment(orderID string) (*models.Payment, bool) {
	if p, ok := t.payments[orderID]; ok {
		return p, true
	}
	p, ok := t.s.payments[orderID]
	return p, ok
}

func (t *memTx) GetJobForUpdate(_ context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := t.job(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(j), nil
}

func (t *memTx) GetPaymentForUpdate(_ context.Context, orderID string) (*models.Payment, error) {
	p, ok := t.payment(orderID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePayment(p), nil
}

func (t *memTx) MarkPaymentCaptured(_ context.Context, orderID, paymentID string, capturedAt time.Time) error {
	p, ok := t.payment(orderID)
	if !ok || p.Status != models.PaymentStatusCreated {
		return store.ErrNotFound
	}
	next := clonePayment(p)
	next.Status = models.PaymentStatusCaptured
	next.PaymentID = &paymentID
	at := capturedAt
	next.CapturedAt = &at
	t.payments[orderID] = next
	return nil
}

func (t *memTx) UnlockJob(_ context.Context, id uuid.UUID, details models.PaymentDetails) error {
	j, ok := t.job(id)
	if !ok || j.Unlocked {
		return store.ErrNotFound
	}
	next := cloneJob(j)
	next.Unlocked = true
	d := details
	next.PaymentDetails = &d
	next.UpdatedAt = time.Now().UTC()
	t.jobs[id] = next
	return nil
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	if j.PaymentDetails != nil {
		d := *j.PaymentDetails
		c.PaymentDetails = &d
	}
	return &c
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	return &c
}

var _ store.Store = (*Store)(nil)
