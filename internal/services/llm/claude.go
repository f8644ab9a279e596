package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
)

type claudeBackend struct {
	baseURL    string
	httpClient *http.Client
}

func newClaudeBackend(baseURL string, httpClient *http.Client) *claudeBackend {
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	return &claudeBackend{baseURL: baseURL, httpClient: httpClient}
}

func (b *claudeBackend) Name() string { return "claude" }

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPStatusError reports a non-2xx provider response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

func (b *claudeBackend) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	payload := claudeRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: req.UserText}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("claude request: encode body: %w", err)
	}
	endpoint, err := url.JoinPath(b.baseURL, "v1", "messages")
	if err != nil {
		return "", fmt.Errorf("claude request: build url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("claude request: new request: %w", err)
	}
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("claude request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("claude request: %w", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var decoded claudeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("claude request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("claude request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", fmt.Errorf("claude request: %w (stop_reason=%q, response_snippet=%s)", ErrEmptyCompletion, decoded.StopReason, summarizePayloadSnippet(string(body)))
	}
	return content, nil
}
