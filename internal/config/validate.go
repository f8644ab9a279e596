package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"summify/internal/language"
)

// Validate ensures the configuration is usable. A missing AI key is not an
// error here: the fix and summarize steps report it per job so extraction and
// transcription keep working without credentials.
func (c *Config) Validate() error {
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAI() error {
	if _, ok := backendDefaults[c.AI.Backend]; !ok {
		return fmt.Errorf("ai.backend %q is not supported (use deepseek, openai, claude, or gemini)", c.AI.Backend)
	}
	if c.AI.Model == "" {
		return errors.New("ai.model must be set")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.New("ai.temperature must be between 0 and 2")
	}
	if c.AI.Threads > 64 {
		return errors.New("ai.threads must be at most 64")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.ModelType {
	case "whisper", "whisperx", "paraformer":
	default:
		return fmt.Errorf("transcription.model_type %q is not supported (use whisper, whisperx, or paraformer)", c.Transcription.ModelType)
	}
	switch c.Transcription.Device {
	case "cpu", "gpu":
	default:
		return fmt.Errorf("transcription.device %q must be cpu or gpu", c.Transcription.Device)
	}
	if _, err := language.Normalize(c.Transcription.Language); err != nil {
		return fmt.Errorf("transcription.language: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == c.Paths.OutputDir {
		return errors.New("paths.upload_dir and paths.output_dir must differ")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
