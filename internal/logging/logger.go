package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"summify/internal/config"
)

// FileName is the log file written inside paths.log_dir.
const FileName = "summify.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// ErrorOutputPaths additionally receive records at error level and above.
	// A path listed in both slices is written once.
	ErrorOutputPaths []string
	Development      bool
	// MaxSizeBytes rotates file outputs once they grow past the limit. Zero disables rotation.
	MaxSizeBytes int64
	MaxBackups   int
	// Hub, when set, receives a copy of every record for the event API.
	Hub *StreamHub
}

// OptionsFromConfig maps the logging section onto Options: stdout plus the
// rotating file in paths.log_dir.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Level: "info", Format: "console"}
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, FileName))
	}
	return Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		OutputPaths:  outputs,
		MaxSizeBytes: int64(cfg.Logging.MaxSizeMB) * 1024 * 1024,
		MaxBackups:   cfg.Logging.MaxBackups,
	}
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	build := func(w io.Writer, lvl *slog.LevelVar) (slog.Handler, error) {
		switch format {
		case "json":
			return newJSONHandler(w, lvl, addSource), nil
		case "console":
			return newConsoleHandler(w, lvl, addSource), nil
		default:
			return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
		}
	}

	outputs := cleanPaths(opts.OutputPaths)
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	var errorOnly []string
	for _, path := range cleanPaths(opts.ErrorOutputPaths) {
		if !slices.Contains(outputs, path) {
			errorOnly = append(errorOnly, path)
		}
	}

	mainWriter, err := openWriters(outputs, opts.MaxSizeBytes, opts.MaxBackups)
	if err != nil {
		return nil, err
	}
	handler, err := build(mainWriter, levelVar)
	if err != nil {
		return nil, err
	}
	if len(errorOnly) > 0 {
		errWriter, err := openWriters(errorOnly, opts.MaxSizeBytes, opts.MaxBackups)
		if err != nil {
			return nil, err
		}
		errLevel := new(slog.LevelVar)
		errLevel.Set(max(level, slog.LevelError))
		errHandler, err := build(errWriter, errLevel)
		if err != nil {
			return nil, err
		}
		handler = fanoutHandler{handler, errHandler}
	}

	return slog.New(newStreamHandler(handler, opts.Hub)), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}

func openWriters(paths []string, maxSize int64, maxBackups int) (io.Writer, error) {
	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := openRotatingFile(path, maxSize, maxBackups)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// fanoutHandler hands each record to every member that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
