package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"summify/internal/config"
)

func clearAIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SUMMIFY_AI_API_KEY", "DEEPSEEK_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigDerivesPathsFromDataDir(t *testing.T) {
	clearAIEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	dataDir := filepath.Join(tempHome, ".local", "share", "summify")
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, dataDir)
	}
	checks := map[string]string{
		cfg.Paths.UploadDir:   filepath.Join(dataDir, "uploads"),
		cfg.Paths.OutputDir:   filepath.Join(dataDir, "outputs"),
		cfg.Paths.PromptsDir:  filepath.Join(dataDir, "prompts"),
		cfg.Paths.RecordsPath: filepath.Join(dataDir, "records.json"),
		cfg.Paths.HistoryPath: filepath.Join(dataDir, "history.db"),
	}
	for got, want := range checks {
		if got != want {
			t.Fatalf("unexpected derived path: got %q want %q", got, want)
		}
	}
	if cfg.AI.Backend != "deepseek" || cfg.AI.Model != "deepseek-chat" {
		t.Fatalf("unexpected ai defaults: %+v", cfg.AI)
	}
	if cfg.AI.BaseURL != "https://api.deepseek.com" {
		t.Fatalf("unexpected base url %q", cfg.AI.BaseURL)
	}
	if cfg.AI.ChunkSize != 4000 || cfg.AI.Threads != 4 || cfg.AI.MaxTokens != 8000 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.AI.APIKey)
	}
	if cfg.Transcription.ModelSize != "large-v3-turbo" {
		t.Fatalf("unexpected model size %q", cfg.Transcription.ModelSize)
	}
	if !cfg.AllowsExtension(".MP4") || !cfg.AllowsExtension(".txt") || cfg.AllowsExtension(".exe") {
		t.Fatal("unexpected extension policy")
	}
}

func TestLoadUsesBackendEnvKey(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ai]\nbackend = \"OpenAI\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if cfg.AI.Backend != "openai" || cfg.AI.Model != "gpt-4o" {
		t.Fatalf("unexpected backend normalization: %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "sk-openai" {
		t.Fatalf("expected env api key, got %q", cfg.AI.APIKey)
	}
}

func TestSummifyKeyTakesPrecedence(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUMMIFY_AI_API_KEY", "generic")
	t.Setenv("DEEPSEEK_API_KEY", "specific")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AI.APIKey != "generic" {
		t.Fatalf("expected generic key, got %q", cfg.AI.APIKey)
	}
}

func TestParaformerDefaultsModelSize(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nmodel_type = \"paraformer\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.ModelSize != "paraformer-zh" {
		t.Fatalf("unexpected paraformer model %q", cfg.Transcription.ModelSize)
	}
}

func TestLanguageIsNormalized(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nlanguage = \"Mandarin\"\n[workflow]\nwork_retention_hours = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.Language != "zh" {
		t.Fatalf("expected language zh, got %q", cfg.Transcription.Language)
	}
	if cfg.Workflow.WorkRetentionHours != 168 {
		t.Fatalf("expected default retention, got %d", cfg.Workflow.WorkRetentionHours)
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.AI.Backend = "llama" }, "ai.backend"},
		{"model type", func(c *config.Config) { c.Transcription.ModelType = "vosk" }, "transcription.model_type"},
		{"device", func(c *config.Config) { c.Transcription.Device = "tpu" }, "transcription.device"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"temperature", func(c *config.Config) { c.AI.Temperature = 3 }, "ai.temperature"},
		{"language", func(c *config.Config) { c.Transcription.Language = "not a language" }, "transcription.language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.UploadDir = "/data/uploads"
			cfg.Paths.OutputDir = "/data/outputs"
			cfg.AI.Model = "m"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalizeExtensions(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[media]\nallowed_extensions = [\"MP3\", \".wav\", \"mp3\", \" \"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	got := strings.Join(cfg.Media.AllowedExtensions, ",")
	if got != ".mp3,.wav" {
		t.Fatalf("unexpected extensions %q", got)
	}
}

func TestCreateSampleIsValidTOML(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.AI.ChunkSize != 4000 {
		t.Fatalf("unexpected sample chunk size %d", decoded.AI.ChunkSize)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected CreateSample to refuse overwriting")
	}
}

func TestEnsureDirectories(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.UploadDir = filepath.Join(cfg.Paths.DataDir, "u")
	cfg.Paths.OutputDir = filepath.Join(cfg.Paths.DataDir, "o")
	cfg.Paths.PromptsDir = filepath.Join(cfg.Paths.DataDir, "p")
	cfg.Paths.WorkDir = filepath.Join(cfg.Paths.DataDir, "w")
	cfg.Paths.LogDir = filepath.Join(cfg.Paths.DataDir, "l")
	cfg.Paths.RecordsPath = filepath.Join(cfg.Paths.DataDir, "r", "records.json")
	cfg.Paths.HistoryPath = filepath.Join(cfg.Paths.DataDir, "h", "history.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.OutputDir, filepath.Dir(cfg.Paths.RecordsPath)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}
