package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"summify/internal/config"
	"summify/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []any{map[string]any{"type": "text", "text": "OK"}},
			"stop_reason": "end_turn",
		})
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), config.AI{Backend: "claude", BaseURL: srv.URL, APIKey: "good-key", Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), config.AI{Backend: "claude", BaseURL: srv.URL, APIKey: "bad-key", Model: "m", MaxRetries: 5})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), config.AI{Backend: "deepseek"})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
	if result.Detail != "API key missing" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckLLM_UnknownBackend(t *testing.T) {
	result := CheckLLM(context.Background(), config.AI{Backend: "llama", APIKey: "k"})
	if result.Passed {
		t.Fatal("expected failure for unknown backend")
	}
}

func TestCheckPrompts(t *testing.T) {
	empty := t.TempDir()
	if CheckPrompts(empty).Passed {
		t.Fatal("expected failure for empty prompt library")
	}

	cfg := testsupport.NewConfig(t, testsupport.WithPrompt("brief.txt", "Summarize briefly."))
	result := CheckPrompts(cfg.Paths.PromptsDir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.HasPrefix(result.Detail, "1 prompt") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckAIKey(t *testing.T) {
	if CheckAIKey(config.AI{Backend: "deepseek"}).Passed {
		t.Fatal("expected failure for blank key")
	}
	if !CheckAIKey(config.AI{APIKey: "k"}).Passed {
		t.Fatal("expected pass for configured key")
	}
}

func TestCheckSystemDeps_Stubbed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "whisper"))
	cfg.Media.FFmpegBinary = "ffmpeg"
	cfg.Transcription.ModelType = "whisper"
	cfg.Transcription.WhisperBinary = "whisper"

	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	for _, status := range statuses[:2] {
		if status.Optional || !status.Available {
			t.Errorf("%s: expected required and available, got %+v", status.Name, status)
		}
	}
	for _, status := range statuses[2:] {
		if !status.Optional {
			t.Errorf("%s: expected optional", status.Name)
		}
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingPrompts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "whisper"))
	cfg.Media.FFmpegBinary = "ffmpeg"
	cfg.Transcription.ModelType = "whisper"
	cfg.Transcription.WhisperBinary = "whisper"

	results := RunAll(context.Background(), cfg)
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Prompts" {
		t.Fatalf("expected only the prompt check to fail, got %+v", failed)
	}

	if err := os.WriteFile(filepath.Join(cfg.Paths.PromptsDir, "brief.txt"), []byte("Summarize."), 0o644); err != nil {
		t.Fatal(err)
	}
	if failed := Failed(RunAll(context.Background(), cfg)); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
}
