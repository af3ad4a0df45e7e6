package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

// PaymentLister defines the interface the admin payments handler depends on.
type PaymentLister interface {
	ListPayments(ctx context.Context, jobID string) ([]*models.Payment, error)
}

// NewListPaymentsHandler returns an http.HandlerFunc for
// GET /api/v1/admin/jobs/{jobID}/payments. Abandoned orders show up here
// as payments still in the created state.
func NewListPaymentsHandler(svc PaymentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payments, err := svc.ListPayments(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeBillingError(w, err)
			return
		}
		response.JSON(w, payments)
	}
}
