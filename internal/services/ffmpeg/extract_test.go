package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"summify/internal/services"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs("/in/talk.mp4", "/out/talk_audio.m4a")
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-i /in/talk.mp4",
		"-vn",
		"-acodec aac",
		"-ac 2",
		"-ar 44100",
		"-b:a 128k",
		"-af highpass=f=200,lowpass=f=3000,afftdn=nf=-25,loudnorm=I=-16:LRA=11:TP=-1.5",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
	if args[len(args)-1] != "/out/talk_audio.m4a" || args[len(args)-2] != "-y" {
		t.Fatalf("expected -y <dest> at the end, got %v", args[len(args)-2:])
	}
}

func TestExtractUsesRunner(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := OutputPath(filepath.Join(dir, "out"), "talk")

	var gotName string
	extractor := NewExtractor("").WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		return os.WriteFile(args[len(args)-1], []byte("audio"), 0o644)
	})
	if err := extractor.Extract(context.Background(), source, dest); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if gotName != FFmpegCommand {
		t.Fatalf("expected ffmpeg binary, got %q", gotName)
	}
	if filepath.Base(dest) != "talk_audio.m4a" {
		t.Fatalf("unexpected dest %q", dest)
	}
}

func TestExtractFailures(t *testing.T) {
	dir := t.TempDir()
	extractor := NewExtractor("ffmpeg").WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})

	err := extractor.Extract(context.Background(), filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "a.m4a"))
	if !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected input-not-found, got %v", err)
	}

	source := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = extractor.Extract(context.Background(), source, filepath.Join(dir, "a.m4a"))
	if !errors.Is(err, services.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}

func TestExtractRejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	extractor := NewExtractor("").WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	err := extractor.Extract(context.Background(), source, filepath.Join(dir, "a.m4a"))
	if !errors.Is(err, services.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure for missing output, got %v", err)
	}
}
