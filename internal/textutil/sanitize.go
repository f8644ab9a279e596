package textutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(norm.NFC.String(name)))
}

// SanitizeUploadName reduces a client-supplied filename to a bare display
// name: directory components are dropped, remaining separators become
// underscores, and the result is NFC-normalised. Returns "" when nothing
// usable is left.
func SanitizeUploadName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(norm.NFC.String(name))
	switch name {
	case "", ".", "..":
		return ""
	}
	return name
}

// BaseName strips the extension from name when it is one of allowed
// (compared case-insensitively); otherwise name is returned unchanged.
func BaseName(name string, allowed []string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return name
	}
	lower := strings.ToLower(ext)
	for _, candidate := range allowed {
		if strings.ToLower(candidate) == lower {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
