package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/reportgate/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
	})
	return NewProvider(config.GeminiConfig{BaseURL: ts.URL, APIKey: "test-key", Model: "gemini-1.5-flash"}, 2*time.Second)
}

func TestGenerate_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "write a haiku" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"an old pond, "},{"text":"a frog jumps"}]},"finishReason":"STOP"}]}`))
	})

	out, err := p.Generate(context.Background(), "write a haiku")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "an old pond, a frog jumps" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	})

	_, err := p.Generate(context.Background(), "x")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := p.Generate(context.Background(), "x")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerate_ContextDeadline(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	p := NewProvider(config.GeminiConfig{Model: "m"}, time.Second)
	if p.cfg.BaseURL != defaultBaseURL {
		t.Errorf("unexpected base url: %s", p.cfg.BaseURL)
	}
	if p.Name() != "gemini" || p.Model() != "m" {
		t.Errorf("unexpected identity: %s %s", p.Name(), p.Model())
	}
}
