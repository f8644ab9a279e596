package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type geminiBackend struct {
	baseURL    string
	httpClient *http.Client
}

func newGeminiBackend(baseURL string, httpClient *http.Client) *geminiBackend {
	return &geminiBackend{baseURL: baseURL, httpClient: httpClient}
}

func (b *geminiBackend) Name() string { return "gemini" }

func (b *geminiBackend) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     req.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.httpClient,
	}
	if b.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserText), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	content := strings.TrimSpace(result.Text())
	if content == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return content, nil
}
