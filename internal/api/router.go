package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/reportgate/internal/api/middleware"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler          http.HandlerFunc
	CreateJobHandler       http.HandlerFunc
	GetJobHandler          http.HandlerFunc
	CreateOrderHandler     http.HandlerFunc
	GenerateHandler        http.HandlerFunc
	RazorpayWebhookHandler http.HandlerFunc
	ListPaymentsHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public: health check and gateway callbacks (authenticated by signature)
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/v1/webhooks/razorpay", orNotImplemented(deps.RazorpayWebhookHandler))

	// End-user routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Post("/api/v1/orders", orNotImplemented(deps.CreateOrderHandler))
		r.Post("/api/v1/generate", orNotImplemented(deps.GenerateHandler))
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireOperatorKey)

		r.Get("/api/v1/admin/jobs/{jobID}/payments", orNotImplemented(deps.ListPaymentsHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
