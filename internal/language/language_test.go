package language

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"auto", ""},
		{" AUTO ", ""},
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"English", "en"},
		{"zh", "zh"},
		{"zh-CN", "zh"},
		{"zh_TW", "zh"},
		{"mandarin", "zh"},
		{"cantonese", "yue"},
		{"ja", "ja"},
		{"fra", "fr"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.input)
		if err != nil {
			t.Errorf("Normalize(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"not a language", "!!", "e"} {
		if got, err := Normalize(input); err == nil {
			t.Errorf("Normalize(%q) = %q, expected error", input, got)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "Auto-detect"},
		{"en", "English"},
		{"zh-CN", "Chinese"},
		{"ja", "Japanese"},
		{"!!", "!!"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
