package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"summify/internal/config"
	"summify/internal/history"
	"summify/internal/logging"
	"summify/internal/notifications"
	"summify/internal/pipeline"
	"summify/internal/prompts"
	"summify/internal/records"
	"summify/internal/services/ffmpeg"
	"summify/internal/services/llm"
	"summify/internal/services/transcriber"
	"summify/internal/workflow"
)

// Services holds everything a pipeline run needs. The daemon and the one-shot
// CLI run share it.
type Services struct {
	Records   *records.Store
	History   *history.Store
	Runner    *pipeline.Runner
	Scheduler *workflow.Scheduler
	Notifier  notifications.Service
}

// Build opens the stores and wires the pipeline runner and scheduler from cfg.
func Build(cfg *config.Config, logger *slog.Logger, hub *logging.StreamHub) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	fixPrompt, err := pipeline.LoadFixPrompt(cfg.AI.FixPromptPath)
	if err != nil {
		return nil, fmt.Errorf("load fix prompt: %w", err)
	}
	backend, err := llm.New(llm.Config{
		Backend:        cfg.AI.Backend,
		BaseURL:        cfg.AI.BaseURL,
		TimeoutSeconds: cfg.AI.TimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("ai backend: %w", err)
	}

	recordStore, err := records.Open(cfg.Paths.RecordsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	historyStore, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	runner := &pipeline.Runner{
		Records:   recordStore,
		Extractor: ffmpeg.NewExtractor(cfg.Media.FFmpegBinary),
		Transcriber: transcriber.NewService(transcriber.Config{
			ModelType:     cfg.Transcription.ModelType,
			ModelSize:     cfg.Transcription.ModelSize,
			Device:        cfg.Transcription.Device,
			Language:      cfg.Transcription.Language,
			WhisperBinary: cfg.Transcription.WhisperBinary,
			FunASRBinary:  cfg.Transcription.FunASRBinary,
			VADModel:      cfg.Transcription.VADModel,
			PuncModel:     cfg.Transcription.PuncModel,
		}),
		Caller: &llm.Caller{
			Backend:     backend,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			MaxRetries:  cfg.AI.MaxRetries,
			BackoffBase: time.Duration(cfg.AI.BackoffBaseSeconds * float64(time.Second)),
			Logger:      logger,
		},
		Prompts: prompts.NewLibrary(cfg.Paths.PromptsDir),
		Layout: pipeline.Layout{
			UploadDir:         cfg.Paths.UploadDir,
			OutputDir:         cfg.Paths.OutputDir,
			WorkDir:           cfg.Paths.WorkDir,
			AllowedExtensions: cfg.Media.AllowedExtensions,
		},
		Settings: pipeline.Settings{
			APIKey:           cfg.AI.APIKey,
			ChunkSize:        cfg.AI.ChunkSize,
			Threads:          cfg.AI.Threads,
			FixPrompt:        fixPrompt,
			TranscribePrompt: cfg.Transcription.InitialPrompt,
		},
		Logger: logger,
	}

	notifier := notifications.NewService(cfg)
	scheduler := workflow.NewScheduler(workflow.Dependencies{
		Runner:   runner,
		Records:  recordStore,
		History:  historyStore,
		Notifier: notifier,
		Hub:      hub,
		Logger:   logger,
	})

	return &Services{
		Records:   recordStore,
		History:   historyStore,
		Runner:    runner,
		Scheduler: scheduler,
		Notifier:  notifier,
	}, nil
}

// Close releases the history database. The scheduler must already be stopped.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}
	return s.History.Close()
}
