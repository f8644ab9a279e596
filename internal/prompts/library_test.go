package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/services"
)

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadMixesTextAndYAML(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "摘要.txt", "  请总结。\n")
	writePrompt(t, dir, "outline.yaml", "name: Outline\nchunked: true\noutput: outline.md\nprompt: |\n  List the sections.\n")
	writePrompt(t, dir, "bare.yml", "prompt: Keywords only\n")
	writePrompt(t, dir, "empty.txt", "   ")
	writePrompt(t, dir, "notes.md", "not a prompt")

	prompts, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 3)

	assert.Equal(t, "bare", prompts[0].Name)
	assert.Equal(t, "bare.txt", prompts[0].Output)
	assert.False(t, prompts[0].Chunked)

	assert.Equal(t, "Outline", prompts[1].Name)
	assert.Equal(t, "outline.md", prompts[1].Output)
	assert.True(t, prompts[1].Chunked)
	assert.Equal(t, "List the sections.", prompts[1].Text)

	assert.Equal(t, "摘要", prompts[2].Name)
	assert.Equal(t, "摘要.txt", prompts[2].Output)
	assert.Equal(t, "请总结。", prompts[2].Text)
}

func TestLoadMissingDirectory(t *testing.T) {
	prompts, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "broken.yaml", "prompt: [unterminated\n")
	_, err := Load(dir)
	assert.True(t, errors.Is(err, services.ErrInvalidArgs))
}

func TestLibrarySaveGetDelete(t *testing.T) {
	lib := NewLibrary(t.TempDir())

	saved, err := lib.Save("亮点.txt", "列出亮点")
	require.NoError(t, err)
	assert.Equal(t, "亮点", saved.Name)

	got, err := lib.Get("亮点.txt")
	require.NoError(t, err)
	assert.Equal(t, "列出亮点", got.Text)

	_, err = lib.Save("bad.md", "x")
	assert.ErrorIs(t, err, services.ErrInvalidArgs)
	_, err = lib.Save("../escape.txt", "x")
	assert.ErrorIs(t, err, services.ErrInvalidArgs)
	_, err = lib.Save("blank.txt", "  ")
	assert.ErrorIs(t, err, services.ErrInvalidArgs)

	require.NoError(t, lib.Delete("亮点.txt"))
	assert.ErrorIs(t, lib.Delete("亮点.txt"), services.ErrInputNotFound)
	_, err = lib.Get("亮点.txt")
	assert.ErrorIs(t, err, services.ErrInputNotFound)
}
