package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"summify/internal/logging"
	"summify/internal/services"
)

// CallError is the failure surfaced after every attempt failed.
type CallError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempt(s): %v", e.Backend, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Caller adds bounded retries to a Backend.
type Caller struct {
	Backend     Backend
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	BackoffBase time.Duration
	Logger      *slog.Logger

	// Sleep overrides how backoff waits are performed (useful for tests).
	Sleep func(ctx context.Context, d time.Duration) error
}

// Call sends text with prompt as the system instruction. It makes at most
// 1 + MaxRetries attempts and returns the last error when all fail.
func (c *Caller) Call(ctx context.Context, text, apiKey, prompt string) (string, error) {
	backendName := "unknown"
	if c.Backend != nil {
		backendName = c.Backend.Name()
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", services.New(services.CodeAIKeyMissing, backendName)
	}
	if c.Backend == nil {
		return "", services.New(services.CodeInternal, "llm caller: backend not configured")
	}

	req := Request{
		APIKey:       apiKey,
		SystemPrompt: prompt,
		UserText:     text,
		Model:        c.Model,
		MaxTokens:    c.MaxTokens,
		Temperature:  c.Temperature,
	}
	logger := logging.WithContext(ctx, c.Logger)

	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	attempts := 0
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		content, err := c.Backend.Complete(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			break
		}
		if attempt == retries {
			break
		}
		delay := c.backoff(attempt)
		logger.Warn("ai call failed; retrying",
			logging.String(logging.FieldEventType, "ai_retry"),
			logging.String("backend", backendName),
			logging.Int("attempt", attempt+1),
			logging.Duration("backoff", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return "", services.Wrap(services.CodeAICallFailed, "", backendName, fmt.Sprintf("%d attempt(s)", attempts),
		&CallError{Backend: backendName, Attempts: attempts, Err: lastErr})
}

// backoff returns BackoffBase * 2^attempt.
func (c *Caller) backoff(attempt int) time.Duration {
	if c.BackoffBase <= 0 {
		return 0
	}
	return c.BackoffBase << uint(attempt)
}

func (c *Caller) sleep(ctx context.Context, delay time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, delay)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
