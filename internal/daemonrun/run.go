package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"summify/internal/config"
	"summify/internal/daemon"
	"summify/internal/logging"
	"summify/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the summify daemon runtime loop and blocks until the context is
// cancelled or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logHub := logging.NewStreamHub(cfg.Workflow.EventBufferSize)
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logOpts := logging.OptionsFromConfig(cfg)
	logOpts.Level = level
	logOpts.Development = opts.Development
	logOpts.Hub = logHub
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	svc, err := Build(cfg, logger, logHub)
	if err != nil {
		logger.Error("build services", logging.Error(err))
		return err
	}
	defer svc.Close()

	d, err := daemon.New(cfg, daemon.Dependencies{
		Records:   svc.Records,
		History:   svc.History,
		Scheduler: svc.Scheduler,
		Notifier:  svc.Notifier,
		Hub:       logHub,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the api_bind address"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("summify daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// LogPath is the file the daemon writes its log to.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logging.FileName)
}

// PIDPath is the file holding the running daemon's pid.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "summify.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPIDFile returns the pid recorded by a running daemon, or zero.
func ReadPIDFile(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("ai_backend", cfg.AI.Backend),
		logging.Bool("ai_key_present", strings.TrimSpace(cfg.AI.APIKey) != ""),
		logging.String("transcription_engine", cfg.Transcription.ModelType),
	}
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		key := strings.ToLower(strings.NewReplacer(" ", "_", "(", "", ")", "").Replace(status.Name))
		attrs = append(attrs, logging.Bool(key+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", result.Name),
			logging.String(logging.FieldErrorHint, result.Detail))
	}
}
