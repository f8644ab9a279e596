package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"summify/internal/fileutil"
	"summify/internal/services"
	"summify/internal/textutil"
)

// Prompt is one summary instruction.
type Prompt struct {
	Name string `json:"name" yaml:"name"`
	Text string `json:"prompt" yaml:"prompt"`
	// Output is the artifact file name written under the record's output
	// folder.
	Output string `json:"output" yaml:"output"`
	// Chunked sends long inputs through the parallel chunk processor instead
	// of a single model call.
	Chunked bool   `json:"chunked" yaml:"chunked"`
	File    string `json:"file" yaml:"-"`
}

// Library reads and edits prompts in one directory.
type Library struct {
	dir string
}

// NewLibrary returns a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }

// Load reads every prompt in dir sorted by file name. A missing directory
// yields no prompts; malformed YAML files are reported.
func Load(dir string) ([]Prompt, error) {
	return NewLibrary(dir).List()
}

// List reads every prompt in the library.
func (l *Library) List() ([]Prompt, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.CodeFileIO, "", "list prompts", l.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	prompts := make([]Prompt, 0, len(names))
	for _, name := range names {
		prompt, ok, err := l.read(name)
		if err != nil {
			return nil, err
		}
		if ok {
			prompts = append(prompts, prompt)
		}
	}
	return prompts, nil
}

// Get reads one prompt by file name.
func (l *Library) Get(file string) (Prompt, error) {
	file, err := checkFileName(file)
	if err != nil {
		return Prompt{}, err
	}
	prompt, ok, err := l.read(file)
	if err != nil {
		return Prompt{}, err
	}
	if !ok {
		return Prompt{}, services.New(services.CodeInputNotFound, "prompt "+file)
	}
	return prompt, nil
}

func (l *Library) read(file string) (Prompt, bool, error) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".txt" && ext != ".yaml" && ext != ".yml" {
		return Prompt{}, false, nil
	}
	path := filepath.Join(l.dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Prompt{}, false, nil
		}
		return Prompt{}, false, services.Wrap(services.CodeFileIO, "", "read prompt", file, err)
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))

	if ext == ".txt" {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return Prompt{}, false, nil
		}
		return Prompt{Name: stem, Text: text, Output: file, File: file}, true, nil
	}

	var prompt Prompt
	if err := yaml.Unmarshal(data, &prompt); err != nil {
		return Prompt{}, false, services.Wrap(services.CodeInvalidArgs, "", "parse prompt", file, err)
	}
	prompt.Text = strings.TrimSpace(prompt.Text)
	if prompt.Text == "" {
		return Prompt{}, false, services.New(services.CodeInvalidArgs, fmt.Sprintf("prompt %s has no prompt text", file))
	}
	prompt.Name = strings.TrimSpace(prompt.Name)
	if prompt.Name == "" {
		prompt.Name = stem
	}
	prompt.Output = textutil.SanitizeFileName(prompt.Output)
	if prompt.Output == "" {
		prompt.Output = textutil.SanitizeFileName(prompt.Name) + ".txt"
	}
	prompt.File = file
	return prompt, true, nil
}

// Save writes a plain-text prompt. The file name must end in .txt.
func (l *Library) Save(file, text string) (Prompt, error) {
	file, err := checkFileName(file)
	if err != nil {
		return Prompt{}, err
	}
	if strings.ToLower(filepath.Ext(file)) != ".txt" {
		return Prompt{}, services.New(services.CodeInvalidArgs, "prompt file must end with .txt")
	}
	if strings.TrimSpace(text) == "" {
		return Prompt{}, services.New(services.CodeInvalidArgs, "prompt text is empty")
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(l.dir, file), []byte(text), 0o644); err != nil {
		return Prompt{}, services.Wrap(services.CodeFileIO, "", "save prompt", file, err)
	}
	return l.Get(file)
}

// Delete removes a prompt file.
func (l *Library) Delete(file string) error {
	file, err := checkFileName(file)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, file)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.New(services.CodeInputNotFound, "prompt "+file)
		}
		return services.Wrap(services.CodeFileIO, "", "delete prompt", file, err)
	}
	return nil
}

func checkFileName(file string) (string, error) {
	clean := textutil.SanitizeUploadName(file)
	if clean == "" || clean != strings.TrimSpace(file) {
		return "", services.New(services.CodeInvalidArgs, fmt.Sprintf("invalid prompt file name %q", file))
	}
	return clean, nil
}
