package language

import (
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps full language names users write in config files to codes.
var words = map[string]string{
	"english":    "en",
	"chinese":    "zh",
	"mandarin":   "zh",
	"cantonese":  "yue",
	"japanese":   "ja",
	"korean":     "ko",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
}

// autoValues leave language detection to the transcription engine.
var autoValues = map[string]struct{}{"": {}, "auto": {}, "detect": {}}

// Normalize maps a configured transcription language to the short ISO 639
// code the transcription engines accept. Region and script subtags are
// dropped ("zh-CN" becomes "zh"), three-letter codes are shortened where a
// two-letter form exists, and "auto" or an empty value yields "".
func Normalize(value string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if _, ok := autoValues[trimmed]; ok {
		return "", nil
	}
	if code, ok := words[trimmed]; ok {
		return code, nil
	}
	tag, err := xlang.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q", value)
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return "", fmt.Errorf("unrecognized language %q", value)
	}
	return base.String(), nil
}

// DisplayName returns the English name for a language code, "Auto-detect"
// for an empty code, and the uppercased input when the code is unknown.
func DisplayName(code string) string {
	normalized, err := Normalize(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if normalized == "" {
		return "Auto-detect"
	}
	name := display.English.Languages().Name(xlang.Make(normalized))
	if name == "" {
		return strings.ToUpper(normalized)
	}
	return name
}
