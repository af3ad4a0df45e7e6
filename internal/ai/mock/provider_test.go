package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/reportgate/internal/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	p := mock.NewMockProvider()
	assert.Equal(t, "mock", p.Name())
	assert.Equal(t, "mock-v1", p.Model())
}

func TestNewMockProvider_Generate(t *testing.T) {
	p := mock.NewMockProvider()
	out, err := p.Generate(context.Background(), "héllo")

	require.NoError(t, err)
	assert.Contains(t, out, "5 characters")
}

func TestMockProvider_ZeroValue(t *testing.T) {
	p := &mock.MockProvider{}
	out, err := p.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, out)
}

// --- NewFailingProvider ---

func TestNewFailingProvider(t *testing.T) {
	want := errors.New("boom")
	p := mock.NewFailingProvider(want)

	_, err := p.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, want)
	assert.Equal(t, "mock-failing", p.Name())
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
