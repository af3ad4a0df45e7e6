package handler

import (
	"context"
	"encoding/json"
	"net/http"

	mw "github.com/kiranshivaraju/reportgate/internal/api/middleware"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/billing"
	"github.com/kiranshivaraju/reportgate/internal/gateway"
)

// OrderCreator defines the interface the create-order handler depends on.
type OrderCreator interface {
	CreateOrder(ctx context.Context, principal, jobID string) (*billing.OrderResult, error)
}

type createOrderResponse struct {
	Order            *gateway.Order `json:"order"`
	GatewayPublicKey string         `json:"gatewayPublicKey"`
}

// NewCreateOrderHandler returns an http.HandlerFunc for POST /api/v1/orders.
func NewCreateOrderHandler(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.GetPrincipal(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required", nil)
			return
		}

		var req struct {
			JobID string `json:"jobId"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "Invalid JSON body", nil)
			return
		}
		if req.JobID == "" {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "jobId is required", nil)
			return
		}

		result, err := svc.CreateOrder(r.Context(), principal, req.JobID)
		if err != nil {
			writeBillingError(w, err)
			return
		}

		response.JSON(w, createOrderResponse{
			Order:            result.Order,
			GatewayPublicKey: result.KeyID,
		})
	}
}
