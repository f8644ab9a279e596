package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	UploadDir   string `toml:"upload_dir"`
	OutputDir   string `toml:"output_dir"`
	PromptsDir  string `toml:"prompts_dir"`
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
	RecordsPath string `toml:"records_path"`
	HistoryPath string `toml:"history_path"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// AI contains the text-model connection and chunking settings used by the fix
// and summarize steps.
type AI struct {
	Backend            string  `toml:"backend"`
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	MaxTokens          int     `toml:"max_tokens"`
	Temperature        float64 `toml:"temperature"`
	ChunkSize          int     `toml:"chunk_size"`
	Threads            int     `toml:"threads"`
	MaxRetries         int     `toml:"max_retries"`
	BackoffBaseSeconds float64 `toml:"backoff_base_seconds"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	FixPromptPath      string  `toml:"fix_prompt_path"`
}

// Transcription contains speech-to-text engine settings. ModelType selects the
// engine (whisper, whisperx, paraformer); ModelSize is engine specific.
type Transcription struct {
	ModelType     string `toml:"model_type"`
	ModelSize     string `toml:"model_size"`
	Device        string `toml:"device"`
	Language      string `toml:"language"`
	InitialPrompt string `toml:"initial_prompt"`
	WhisperBinary string `toml:"whisper_binary"`
	FunASRBinary  string `toml:"funasr_binary"`
	VADModel      string `toml:"vad_model"`
	PuncModel     string `toml:"punc_model"`
}

// Media contains extraction settings and the accepted upload extensions.
type Media struct {
	FFmpegBinary      string   `toml:"ffmpeg_binary"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxUploadMB       int      `toml:"max_upload_mb"`
}

// Workflow contains worker and watcher behaviour.
type Workflow struct {
	WatchUploads       bool `toml:"watch_uploads"`
	WatchDebounceMS    int  `toml:"watch_debounce_ms"`
	EventBufferSize    int  `toml:"event_buffer_size"`
	ShutdownTimeoutSec int  `toml:"shutdown_timeout_seconds"`
	WorkRetentionHours int  `toml:"work_retention_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
	OnFailure      bool   `toml:"on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for summify.
//
// Configuration sections by subsystem:
//   - Paths: storage directories, record store, history database, API bind
//   - AI: text backend, credentials, chunking and retry policy
//   - Transcription: speech-to-text engine selection
//   - Media: ffmpeg and accepted upload types
//   - Workflow: upload watcher and event buffering
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	AI            AI            `toml:"ai"`
	Transcription Transcription `toml:"transcription"`
	Media         Media         `toml:"media"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("summify.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and CLI write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.UploadDir,
		c.Paths.OutputDir,
		c.Paths.PromptsDir,
		c.Paths.WorkDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.RecordsPath),
		filepath.Dir(c.Paths.HistoryPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AllowsExtension reports whether ext (with leading dot, any case) is an accepted input type.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Media.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// IsTextExtension reports whether ext names a plain transcript input that skips
// extraction and transcription.
func IsTextExtension(ext string) bool {
	return strings.EqualFold(strings.TrimSpace(ext), ".txt")
}

// CreateSample writes the embedded sample configuration to path. Existing files are not overwritten.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
