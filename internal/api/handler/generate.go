package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/reportgate/internal/ai"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
)

// Generator defines the interface the generate handler depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/generate.
func NewGenerateHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "Invalid JSON body", nil)
			return
		}

		text, err := svc.Generate(r.Context(), req.Prompt)
		if err != nil {
			switch {
			case errors.Is(err, ai.ErrEmptyPrompt):
				response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "prompt is required", nil)
			case errors.Is(err, ai.ErrPromptTooLong):
				response.Error(w, http.StatusBadRequest, response.CodeInvalidArgument, "prompt is too long", nil)
			case errors.Is(err, ai.ErrInferenceTimeout):
				response.Error(w, http.StatusGatewayTimeout, response.CodeAITimeout,
					"Generation took too long and was cancelled", nil)
			case errors.Is(err, ai.ErrProviderUnavailable), errors.Is(err, ai.ErrInvalidResponse):
				response.Error(w, http.StatusBadGateway, response.CodeAIUnavailable,
					"The AI provider is not available", nil)
			default:
				response.Error(w, http.StatusInternalServerError, response.CodeInternal,
					"An unexpected error occurred", nil)
			}
			return
		}

		response.PlainText(w, http.StatusOK, text)
	}
}
