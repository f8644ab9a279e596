package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"summify/internal/services"
)

// FFmpegCommand is the default binary name.
const FFmpegCommand = "ffmpeg"

// AudioSuffix is appended to the source stem to name the extracted track.
const AudioSuffix = "_audio.m4a"

// filterChain trims rumble and hiss, denoises, then normalises loudness.
const filterChain = "highpass=f=200,lowpass=f=3000,afftdn=nf=-25,loudnorm=I=-16:LRA=11:TP=-1.5"

// Extractor produces speech-ready audio from media files.
type Extractor struct {
	binary string
	runner services.CommandRunner
}

// NewExtractor creates an extractor using binary (defaults to ffmpeg).
func NewExtractor(binary string) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = FFmpegCommand
	}
	return &Extractor{binary: binary}
}

// WithCommandRunner returns a copy that executes through runner.
func (e *Extractor) WithCommandRunner(runner services.CommandRunner) *Extractor {
	clone := *e
	clone.runner = runner
	return &clone
}

// Binary returns the configured ffmpeg executable.
func (e *Extractor) Binary() string { return e.binary }

// OutputPath names the extracted track for displayBase inside dir.
func OutputPath(dir, displayBase string) string {
	return filepath.Join(dir, displayBase+AudioSuffix)
}

// Extract writes the audio track of source to dest, overwriting dest.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.CodeInputNotFound, "extract", "stat source", source, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.CodeFileIO, "extract", "ensure output dir", filepath.Dir(dest), err)
	}
	runner := e.runner
	if runner == nil {
		runner = services.RunCombined
	}
	if err := runner(ctx, e.binary, BuildArgs(source, dest)...); err != nil {
		return services.Wrap(services.CodeExtractionFailed, "extract", "ffmpeg", filepath.Base(source), err)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return services.Wrap(services.CodeExtractionFailed, "extract", "verify output", dest, err)
	}
	return nil
}

// BuildArgs returns the ffmpeg arguments for extracting source into dest.
func BuildArgs(source, dest string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", source,
		"-vn",
		"-acodec", "aac",
		"-ac", "2",
		"-ar", "44100",
		"-b:a", "128k",
		"-af", filterChain,
		"-y",
		dest,
	}
}
