package textutil

import (
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  meeting notes  ", "meeting notes"},
		{"a/b\\c:d*e", "a-b-c-d-e"},
		{`what? "quoted" <x>|`, "what quoted x"},
		{"   ", ""},
	}
	for _, tc := range tests {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeUploadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.mp4", "report.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\讲座.mp3`, "讲座.mp3"},
		{"  spaced.wav ", "spaced.wav"},
		{"dir/", ""},
		{"..", ""},
	}
	for _, tc := range tests {
		if got := SanitizeUploadName(tc.in); got != tc.want {
			t.Errorf("SanitizeUploadName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeUploadNameNormalizesNFC(t *testing.T) {
	decomposed := norm.NFD.String("café.mp3")
	got := SanitizeUploadName(decomposed)
	if got != "café.mp3" || !norm.NFC.IsNormalString(got) {
		t.Fatalf("expected NFC output, got %q", got)
	}
}

func TestBaseName(t *testing.T) {
	allowed := []string{".mp4", ".txt"}
	if got := BaseName("talk.MP4", allowed); got != "talk" {
		t.Fatalf("expected talk, got %q", got)
	}
	if got := BaseName("archive.tar", allowed); got != "archive.tar" {
		t.Fatalf("unknown extension should be kept, got %q", got)
	}
	if got := BaseName("noext", allowed); got != "noext" {
		t.Fatalf("got %q", got)
	}
}
