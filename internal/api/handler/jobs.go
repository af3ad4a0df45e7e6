package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/reportgate/internal/api/middleware"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/billing"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

const maxJSONBodyBytes = 64 * 1024

// JobCreator defines the interface the create-job handler depends on.
type JobCreator interface {
	CreateJob(ctx context.Context, principal string, in billing.CreateJobInput) (*models.Job, error)
}

// JobGetter defines the interface the get-job handler depends on.
type JobGetter interface {
	GetJob(ctx context.Context, principal, jobID string) (*models.Job, error)
}

type createJobRequest struct {
	FileURL     string `json:"fileUrl"`
	Filename    string `json:"filename"`
	ProfileURL  string `json:"profileUrl"`
	LinkedInURL string `json:"linkedinUrl"`
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewCreateJobHandler(svc JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.GetPrincipal(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required", nil)
			return
		}

		var req createJobRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "Invalid JSON body", nil)
			return
		}
		profileURL := req.ProfileURL
		if profileURL == "" {
			profileURL = req.LinkedInURL
		}

		job, err := svc.CreateJob(r.Context(), principal, billing.CreateJobInput{
			FileURL:    req.FileURL,
			Filename:   req.Filename,
			ProfileURL: profileURL,
		})
		if err != nil {
			writeBillingError(w, err)
			return
		}

		response.JSON(w, map[string]string{"jobId": job.ID.String()})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.GetPrincipal(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required", nil)
			return
		}

		job, err := svc.GetJob(r.Context(), principal, chi.URLParam(r, "jobID"))
		if err != nil {
			writeBillingError(w, err)
			return
		}

		response.JSON(w, job)
	}
}
