package models

import "context"

// AIProvider is the interface every generative-content integration implements.
// Never call a specific provider directly; inject this interface.
type AIProvider interface {
	// Generate sends a prompt and returns the raw model text.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "mock").
	Name() string
	// Model returns the model the provider targets.
	Model() string
}
