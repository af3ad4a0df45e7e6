package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/reportgate/internal/gateway"
)

// MockGateway satisfies gateway.Gateway for testing.
type MockGateway struct {
	KeyID_          string
	CreateOrderFunc func(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)

	mu       sync.Mutex
	requests []gateway.OrderRequest
}

func (m *MockGateway) KeyID() string { return m.KeyID_ }

func (m *MockGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &gateway.Order{}, nil
}

// Requests returns every order request received so far.
func (m *MockGateway) Requests() []gateway.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gateway.OrderRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// NewMockGateway returns a MockGateway that echoes requests back as created
// orders with sequential ids.
func NewMockGateway() *MockGateway {
	var seq atomic.Int64
	return &MockGateway{
		KeyID_: "rzp_test_mock",
		CreateOrderFunc: func(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
			n := seq.Add(1)
			return &gateway.Order{
				ID:        fmt.Sprintf("order_mock%06d", n),
				Entity:    "order",
				Amount:    req.Amount,
				AmountDue: req.Amount,
				Currency:  req.Currency,
				Receipt:   req.Receipt,
				Status:    "created",
				Notes:     req.Notes,
				CreatedAt: time.Now().Unix(),
			}, nil
		},
	}
}

// NewFailingGateway returns a MockGateway whose CreateOrder always returns err.
func NewFailingGateway(err error) *MockGateway {
	return &MockGateway{
		KeyID_: "rzp_test_mock",
		CreateOrderFunc: func(_ context.Context, _ gateway.OrderRequest) (*gateway.Order, error) {
			return nil, err
		},
	}
}

// NewTimeoutGateway returns a MockGateway that blocks until the context is done.
func NewTimeoutGateway() *MockGateway {
	return &MockGateway{
		KeyID_: "rzp_test_mock",
		CreateOrderFunc: func(ctx context.Context, _ gateway.OrderRequest) (*gateway.Order, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, ctx.Err())
		},
	}
}

// Compile-time check that MockGateway implements Gateway.
var _ gateway.Gateway = (*MockGateway)(nil)
