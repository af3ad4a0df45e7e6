package ai

import "errors"

var (
	ErrEmptyPrompt         = errors.New("prompt is required")
	ErrPromptTooLong       = errors.New("prompt is too long")
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
