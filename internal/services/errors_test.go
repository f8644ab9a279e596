package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"summify/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.CodeExtractionFailed, "extract", "ffmpeg", "exit status 1", base)
	if !errors.Is(err, services.ErrExtractionFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"[E200]", "extract", "ffmpeg", "exit status 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code services.Code
	}{
		{name: "nil", err: nil, code: services.CodeSuccess},
		{name: "plain", err: errors.New("oops"), code: services.CodeInternal},
		{name: "coded", err: services.New(services.CodeAIKeyMissing, "deepseek"), code: services.CodeAIKeyMissing},
		{name: "wrapped", err: fmt.Errorf("run: %w", services.New(services.CodeInvalidSteps, "31")), code: services.CodeInvalidSteps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.DetailsOf(tt.err)
			if got.Code != tt.code {
				t.Fatalf("code = %s, want %s", got.Code, tt.code)
			}
			if got.Message == "" {
				t.Fatal("expected message")
			}
		})
	}
}

func TestDetailsOfIncludesCause(t *testing.T) {
	err := services.Wrap(services.CodeFileIO, "delete", "remove folder", "", errors.New("permission denied"))
	got := services.DetailsOf(err)
	if got.Details != "delete: remove folder: permission denied" {
		t.Fatalf("unexpected details %q", got.Details)
	}
}

func TestErrorFormat(t *testing.T) {
	err := services.New(services.CodeInputNotFound, "/tmp/a.mp4")
	if err.Error() != "[E110] input not found | /tmp/a.mp4" {
		t.Fatalf("unexpected format %q", err.Error())
	}
}

func TestWrapFoldsContextIntoDetails(t *testing.T) {
	base := errors.New("exit status 1")
	var coded *services.Error
	if !errors.As(services.Wrap(services.CodeTranscriptionFailed, "transcribe", "", "whisper", base), &coded) {
		t.Fatal("expected *services.Error")
	}
	if coded.Message != services.CodeTranscriptionFailed.Message() {
		t.Fatalf("message = %q", coded.Message)
	}
	if coded.Details != "transcribe: whisper" {
		t.Fatalf("details = %q", coded.Details)
	}
	if coded.Err != base {
		t.Fatalf("err = %v", coded.Err)
	}
}
