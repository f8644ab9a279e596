package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIBackend serves both DeepSeek and OpenAI; they share the chat
// completions wire format and differ only in base URL and model.
type openAIBackend struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func newOpenAIBackend(name, baseURL string, httpClient *http.Client) *openAIBackend {
	return &openAIBackend{name: name, baseURL: baseURL, httpClient: httpClient}
}

func (b *openAIBackend) Name() string { return b.name }

func (b *openAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithHTTPClient(b.httpClient),
		option.WithMaxRetries(0),
	}
	if b.baseURL != "" {
		opts = append(opts, option.WithBaseURL(b.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserText),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: %w: no choices", b.name, ErrEmptyCompletion)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s chat completion: %w (finish_reason=%q)", b.name, ErrEmptyCompletion, resp.Choices[0].FinishReason)
	}
	return content, nil
}
