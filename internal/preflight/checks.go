package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"summify/internal/config"
	"summify/internal/deps"
	"summify/internal/prompts"
	"summify/internal/services/llm"
	"summify/internal/services/transcriber"
)

// CheckLLM verifies that the text backend is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, cfg config.AI) Result {
	const name = "AI backend"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	backend, err := llm.New(llm.Config{Backend: cfg.Backend, BaseURL: cfg.BaseURL, TimeoutSeconds: 30})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	caller := &llm.Caller{Backend: backend, Model: cfg.Model, MaxTokens: 16}
	if _, err := caller.Call(checkCtx, "ping", cfg.APIKey, "Reply with the single word OK."); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", backend.Name())}
}

// CheckAIKey reports whether a text-model key is configured without calling
// the backend.
func CheckAIKey(cfg config.AI) Result {
	const name = "AI key"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("missing (fix and summarize will fail; set ai.api_key for %s)", cfg.Backend)}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckPrompts verifies the summary prompt library is non-empty.
func CheckPrompts(dir string) Result {
	const name = "Prompts"
	list, err := prompts.NewLibrary(dir).List()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	if len(list) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no prompts; summarize will fail)", dir)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d prompt(s) in %s", len(list), dir)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external tools the pipeline runs. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	engine := transcriber.NewService(transcriber.Config{
		ModelType:     cfg.Transcription.ModelType,
		WhisperBinary: cfg.Transcription.WhisperBinary,
		FunASRBinary:  cfg.Transcription.FunASRBinary,
	})
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "Required for audio extraction",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "Transcriber (" + cfg.Transcription.ModelType + ")",
			Command:     engine.Command(cfg.Transcription.ModelType),
			Description: "Required for the transcribe step",
		},
	}
	for _, other := range []string{transcriber.EngineWhisper, transcriber.EngineWhisperX, transcriber.EngineParaformer} {
		if other == strings.ToLower(cfg.Transcription.ModelType) {
			continue
		}
		requirements = append(requirements, deps.Requirement{
			Name:        "Transcriber (" + other + ")",
			Command:     engine.Command(other),
			Description: "Used when a job selects " + other,
			Optional:    true,
		})
	}
	return deps.CheckBinaries(ctx, requirements)
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (AI backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (AI backend unreachable)"
	}
	return err.Error()
}
