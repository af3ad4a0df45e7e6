package ai

import (
	"fmt"

	"github.com/kiranshivaraju/reportgate/internal/ai/gemini"
	"github.com/kiranshivaraju/reportgate/internal/ai/mock"
	"github.com/kiranshivaraju/reportgate/internal/config"
	"github.com/kiranshivaraju/reportgate/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, mock", cfg.Provider)
	}
}
