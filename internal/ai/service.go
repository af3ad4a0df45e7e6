package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/reportgate/pkg/models"
)

const (
	maxPromptBytes = 32 * 1024
	maxOutputBytes = 64 * 1024
	defaultTimeout = 30 * time.Second
)

// GenerateService is a stateless proxy in front of a generative provider.
type GenerateService struct {
	provider models.AIProvider
	timeout  time.Duration
}

// NewGenerateService creates a new GenerateService.
func NewGenerateService(provider models.AIProvider, timeout time.Duration) *GenerateService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GenerateService{provider: provider, timeout: timeout}
}

// Generate forwards prompt to the provider and returns its text output.
// Provider failures are reported as ErrProviderUnavailable or
// ErrInferenceTimeout; the underlying detail is only logged.
func (s *GenerateService) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if len(prompt) > maxPromptBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrPromptTooLong, maxPromptBytes)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.provider.Generate(genCtx, prompt)
	if err != nil {
		slog.Error("ai generation failed",
			"provider", s.provider.Name(),
			"model", s.provider.Model(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrInferenceTimeout) || genCtx.Err() != nil {
			return "", ErrInferenceTimeout
		}
		return "", ErrProviderUnavailable
	}
	if strings.TrimSpace(text) == "" {
		slog.Error("ai provider returned empty output", "provider", s.provider.Name())
		return "", ErrInvalidResponse
	}

	return truncateString(text, maxOutputBytes), nil
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
