package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"summify/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAI(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeMedia()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir, defaultUploadSubdir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputSubdir},
		{"paths.prompts_dir", &c.Paths.PromptsDir, defaultPromptsSubdir},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkSubdir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogSubdir},
		{"paths.records_path", &c.Paths.RecordsPath, defaultRecordsFile},
		{"paths.history_path", &c.Paths.HistoryPath, defaultHistoryFile},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataDir, entry.fallback)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("SUMMIFY_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeAI() error {
	c.AI.Backend = strings.ToLower(strings.TrimSpace(c.AI.Backend))
	if c.AI.Backend == "" {
		c.AI.Backend = defaultAIBackend
	}
	defaults, known := backendDefaults[c.AI.Backend]

	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	if c.AI.APIKey == "" {
		if value := strings.TrimSpace(os.Getenv("SUMMIFY_AI_API_KEY")); value != "" {
			c.AI.APIKey = value
		} else if known && defaults.EnvKey != "" {
			c.AI.APIKey = strings.TrimSpace(os.Getenv(defaults.EnvKey))
		}
	}
	c.AI.BaseURL = strings.TrimSpace(c.AI.BaseURL)
	if c.AI.BaseURL == "" && known {
		c.AI.BaseURL = defaults.BaseURL
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" && known {
		c.AI.Model = defaults.Model
	}

	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = defaultAIMaxTokens
	}
	if c.AI.ChunkSize <= 0 {
		c.AI.ChunkSize = defaultAIChunkSize
	}
	if c.AI.Threads <= 0 {
		c.AI.Threads = defaultAIThreads
	}
	if c.AI.MaxRetries < 0 {
		c.AI.MaxRetries = 0
	}
	if c.AI.BackoffBaseSeconds < 0 {
		c.AI.BackoffBaseSeconds = 0
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = defaultAITimeoutSeconds
	}

	var err error
	if c.AI.FixPromptPath, err = expandPath(strings.TrimSpace(c.AI.FixPromptPath)); err != nil {
		return fmt.Errorf("ai.fix_prompt_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.ModelType = strings.ToLower(strings.TrimSpace(c.Transcription.ModelType))
	if c.Transcription.ModelType == "" {
		c.Transcription.ModelType = defaultModelType
	}
	c.Transcription.ModelSize = strings.TrimSpace(c.Transcription.ModelSize)
	if c.Transcription.ModelSize == "" {
		c.Transcription.ModelSize = DefaultModelSize(c.Transcription.ModelType)
	}
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	if c.Transcription.Device == "" {
		c.Transcription.Device = defaultDevice
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if code, err := language.Normalize(c.Transcription.Language); err == nil {
		c.Transcription.Language = code
	}
	c.Transcription.InitialPrompt = strings.TrimSpace(c.Transcription.InitialPrompt)
	if strings.TrimSpace(c.Transcription.WhisperBinary) == "" {
		c.Transcription.WhisperBinary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Transcription.FunASRBinary) == "" {
		c.Transcription.FunASRBinary = defaultFunASRBinary
	}
	c.Transcription.VADModel = strings.TrimSpace(c.Transcription.VADModel)
	c.Transcription.PuncModel = strings.TrimSpace(c.Transcription.PuncModel)
}

func (c *Config) normalizeMedia() {
	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	exts := make([]string, 0, len(c.Media.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Media.AllowedExtensions))
	for _, ext := range c.Media.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultAllowedExtensions...)
	}
	c.Media.AllowedExtensions = exts
	if c.Media.MaxUploadMB <= 0 {
		c.Media.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WatchDebounceMS <= 0 {
		c.Workflow.WatchDebounceMS = defaultWatchDebounceMS
	}
	if c.Workflow.EventBufferSize <= 0 {
		c.Workflow.EventBufferSize = defaultEventBufferSize
	}
	if c.Workflow.ShutdownTimeoutSec <= 0 {
		c.Workflow.ShutdownTimeoutSec = defaultShutdownTimeoutSec
	}
	if c.Workflow.WorkRetentionHours <= 0 {
		c.Workflow.WorkRetentionHours = defaultWorkRetentionHours
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
}
