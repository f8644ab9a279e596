package transcriber

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"summify/internal/services"
)

// Service runs the configured transcription engine.
type Service struct {
	cfg           Config
	commandRunner services.CommandRunner
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.ModelType) == "" {
		cfg.ModelType = EngineWhisper
	}
	if cfg.WhisperBinary == "" {
		cfg.WhisperBinary = WhisperCommand
	}
	if cfg.FunASRBinary == "" {
		cfg.FunASRBinary = FunASRCommand
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner returns a copy that executes engines through runner.
func (s *Service) WithCommandRunner(runner services.CommandRunner) *Service {
	clone := *s
	clone.commandRunner = runner
	return &clone
}

// Resolve returns the engine and model that a job with opts would use. A job
// that switches engine without naming a model gets that engine's default.
func (s *Service) Resolve(opts Options) (engine, model string) {
	engine = strings.ToLower(strings.TrimSpace(opts.ModelType))
	if engine == "" {
		engine = strings.ToLower(s.cfg.ModelType)
	}
	model = strings.TrimSpace(opts.ModelSize)
	if model != "" {
		return engine, model
	}
	if engine == strings.ToLower(s.cfg.ModelType) && s.cfg.ModelSize != "" {
		return engine, s.cfg.ModelSize
	}
	if engine == EngineParaformer {
		return engine, DefaultParaformerModel
	}
	return engine, DefaultWhisperModel
}

// Command returns the executable an engine runs through.
func (s *Service) Command(engine string) string {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineWhisperX:
		return UVXCommand
	case EngineParaformer:
		return s.cfg.FunASRBinary
	default:
		return s.cfg.WhisperBinary
	}
}

// Request describes one transcription.
type Request struct {
	AudioPath string
	OutputDir string
	// BaseName is the display stem used for the transcript file name.
	BaseName string
	// Prompt primes engines that support an initial prompt.
	Prompt  string
	Options Options
}

// TranscriptPath names the transcript for base inside dir.
func TranscriptPath(dir, base string) string {
	return filepath.Join(dir, base+TranscriptSuffix)
}

// Transcribe runs the engine and writes the transcript, returning its path.
func (s *Service) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.AudioPath == "" {
		return "", services.New(services.CodeInvalidArgs, "transcribe: audio path required")
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return "", services.Wrap(services.CodeInputNotFound, "transcribe", "stat audio", req.AudioPath, err)
	}
	if req.OutputDir == "" {
		req.OutputDir = filepath.Dir(req.AudioPath)
	}
	if req.BaseName == "" {
		req.BaseName = strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.CodeFileIO, "transcribe", "ensure output dir", req.OutputDir, err)
	}

	workDir, err := os.MkdirTemp(req.OutputDir, ".transcribe-")
	if err != nil {
		return "", services.Wrap(services.CodeFileIO, "transcribe", "create work dir", req.OutputDir, err)
	}
	defer os.RemoveAll(workDir)

	engine, model := s.Resolve(req.Options)
	var text string
	switch engine {
	case EngineWhisper:
		text, err = s.runWhisper(ctx, req, model, workDir)
	case EngineWhisperX:
		text, err = s.runWhisperX(ctx, req, model, workDir)
	case EngineParaformer:
		text, err = s.runParaformer(ctx, req, model, workDir)
	default:
		return "", services.New(services.CodeInvalidArgs, fmt.Sprintf("unsupported model type %q", engine))
	}
	if err != nil {
		return "", services.Wrap(services.CodeTranscriptionFailed, "transcribe", engine, model, err)
	}

	dest := TranscriptPath(req.OutputDir, req.BaseName)
	if err := os.WriteFile(dest, []byte(strings.TrimSpace(text)), 0o644); err != nil {
		return "", services.Wrap(services.CodeFileIO, "transcribe", "write transcript", dest, err)
	}
	return dest, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	return services.RunCombined(ctx, name, args...)
}

func (s *Service) gpu() bool {
	return strings.EqualFold(s.cfg.Device, "gpu")
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (s *Service) runWhisper(ctx context.Context, req Request, model, workDir string) (string, error) {
	if err := s.run(ctx, s.cfg.WhisperBinary, s.whisperArgs(req, model, workDir)...); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(workDir, stem(req.AudioPath)+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return string(data), nil
}

func (s *Service) whisperArgs(req Request, model, workDir string) []string {
	device := "cpu"
	if s.gpu() {
		device = "cuda"
	}
	args := []string{
		req.AudioPath,
		"--model", model,
		"--device", device,
		"--output_dir", workDir,
		"--output_format", "txt",
		"--verbose", "False",
	}
	if !s.gpu() {
		args = append(args, "--fp16", "False")
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	return args
}

func (s *Service) runWhisperX(ctx context.Context, req Request, model, workDir string) (string, error) {
	if err := s.run(ctx, UVXCommand, s.whisperXArgs(req, model, workDir)...); err != nil {
		return "", err
	}
	return loadTranscriptText(filepath.Join(workDir, stem(req.AudioPath)+".json"))
}

// whisperXArgs constructs the uvx command arguments for WhisperX.
func (s *Service) whisperXArgs(req Request, model, workDir string) []string {
	args := make([]string, 0, 24)
	if s.gpu() {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		req.AudioPath,
		"--model", model,
		"--batch_size", BatchSize,
		"--output_dir", workDir,
		"--output_format", "json",
		"--vad_method", VADMethod,
	)
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	if s.gpu() {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", CPUComputeType)
	}
	return args
}

func (s *Service) runParaformer(ctx context.Context, req Request, model, workDir string) (string, error) {
	if err := s.run(ctx, s.cfg.FunASRBinary, s.paraformerArgs(req, model, workDir)...); err != nil {
		return "", err
	}
	return loadFunASRText(filepath.Join(workDir, "1best_recog", "text"))
}

// paraformerArgs builds FunASR's hydra-style overrides. The initial prompt
// has no paraformer equivalent and is dropped.
func (s *Service) paraformerArgs(req Request, model, workDir string) []string {
	device := "cpu"
	if s.gpu() {
		device = "cuda:0"
	}
	args := []string{
		"++model=" + model,
		"++input=" + req.AudioPath,
		"++output_dir=" + workDir,
		"++device=" + device,
		"++batch_size_s=" + ParaformerBatchSeconds,
		"++disable_update=true",
	}
	if s.cfg.VADModel != "" {
		args = append(args, "++vad_model="+s.cfg.VADModel)
	}
	if s.cfg.PuncModel != "" {
		args = append(args, "++punc_model="+s.cfg.PuncModel)
	}
	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

func loadTranscriptText(jsonPath string) (string, error) {
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// loadFunASRText reads "<key>\t<text>" lines and joins the text columns.
func loadFunASRText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read funasr output: %w", err)
	}
	defer f.Close()

	var parts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, text, ok := strings.Cut(line, "\t"); ok {
			line = text
		} else if _, text, ok := strings.Cut(line, " "); ok {
			line = text
		}
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan funasr output: %w", err)
	}
	return strings.Join(parts, "\n"), nil
}
