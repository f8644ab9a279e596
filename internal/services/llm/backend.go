package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 300 * time.Second

// ErrEmptyCompletion reports a successful response that carried no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Request is one completion call.
type Request struct {
	APIKey       string
	SystemPrompt string
	UserText     string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Backend performs a single provider call.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and tunes a backend.
type Config struct {
	Backend        string
	BaseURL        string
	TimeoutSeconds int
	HTTPClient     *http.Client
}

// New returns the backend registered under cfg.Backend.
func New(cfg Config) (Backend, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)

	switch name := strings.ToLower(strings.TrimSpace(cfg.Backend)); name {
	case "deepseek", "openai":
		return newOpenAIBackend(name, baseURL, httpClient), nil
	case "claude":
		return newClaudeBackend(baseURL, httpClient), nil
	case "gemini":
		return newGeminiBackend(baseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("llm: unsupported backend %q", cfg.Backend)
	}
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
