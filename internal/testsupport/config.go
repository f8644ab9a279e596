package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"summify/internal/config"
)

// Option adjusts a test config before its directories are created.
type Option func(t testing.TB, cfg *config.Config)

// NewConfig returns the default config rooted in a fresh temp directory, with
// an ephemeral API port and a placeholder AI key. Every directory it names
// exists on return.
func NewConfig(t testing.TB, opts ...Option) *config.Config {
	t.Helper()

	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = root
	for dst, name := range map[*string]string{
		&cfg.Paths.UploadDir:   "uploads",
		&cfg.Paths.OutputDir:   "outputs",
		&cfg.Paths.PromptsDir:  "prompts",
		&cfg.Paths.WorkDir:     "tempdata",
		&cfg.Paths.LogDir:      "logs",
		&cfg.Paths.RecordsPath: "records.json",
		&cfg.Paths.HistoryPath: "history.db",
	} {
		*dst = filepath.Join(root, name)
	}
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.AI.APIKey = "test"

	for _, opt := range opts {
		opt(t, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithPrompt drops a plain-text prompt into the prompt library.
func WithPrompt(name, text string) Option {
	return func(t testing.TB, cfg *config.Config) {
		path := filepath.Join(cfg.Paths.PromptsDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir prompts: %v", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatalf("write prompt %s: %v", name, err)
		}
	}
}

// WithStubbedBinaries puts no-op executables named after the external tools
// first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) Option {
	return func(t testing.TB, cfg *config.Config) {
		bin := filepath.Join(cfg.Paths.DataDir, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			script := "#!/bin/sh\necho \"" + name + " stub\"\n"
			if err := os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp root behind a config from NewConfig.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
