package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"summify/internal/fileutil"
	"summify/internal/logging"
	"summify/internal/prompts"
	"summify/internal/records"
	"summify/internal/services"
	"summify/internal/services/ffmpeg"
	"summify/internal/services/transcriber"
	"summify/internal/textproc"
)

// RecordStore is the subset of the record store a run needs.
type RecordStore interface {
	Get(ctx context.Context, id records.Identity) (records.FileRecord, bool, error)
	Upsert(ctx context.Context, id records.Identity, patch records.Patch) (records.FileRecord, error)
}

// Job is one queued pipeline request.
type Job struct {
	ID      string              `json:"id"`
	FileID  string              `json:"file_id"`
	Steps   StepSet             `json:"steps"`
	Options transcriber.Options `json:"options"`
}

// Settings carries the text-model parameters shared by the fix and
// summarize steps.
type Settings struct {
	APIKey           string
	ChunkSize        int
	Threads          int
	FixPrompt        string
	TranscribePrompt string
}

// Result summarises a finished run.
type Result struct {
	Record    records.FileRecord
	Completed []Step
	Outputs   []string
}

// Runner executes jobs against one record store and set of collaborators.
type Runner struct {
	Records     RecordStore
	Extractor   *ffmpeg.Extractor
	Transcriber *transcriber.Service
	Caller      textproc.ChunkCaller
	Prompts     *prompts.Library
	Layout      Layout
	Settings    Settings
	Logger      *slog.Logger
	// Exec runs external tools; defaults to Exec.
	Exec ExecFunc
	Now  func() time.Time
}

type runState struct {
	job      Job
	record   records.FileRecord
	art      Artifacts
	isText   bool
	current  string
	logger   *slog.Logger
	progress func(string)
	result   Result
}

// Run executes the job's steps in ascending order. progress receives
// human-readable lines, including filtered tool output, and may be nil.
// The first failing step aborts the run; record updates from steps that
// already succeeded are kept.
func (r *Runner) Run(ctx context.Context, job Job, progress func(string)) (Result, error) {
	if len(job.Steps) == 0 {
		return Result{}, services.New(services.CodeInvalidSteps, "no steps selected")
	}
	if r.Records == nil {
		return Result{}, services.New(services.CodeInternal, "pipeline: record store not configured")
	}
	ctx = services.WithScope(ctx, services.Scope{FileID: job.FileID, JobID: job.ID})

	rec, ok, err := r.Records.Get(ctx, records.ByID(job.FileID))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, services.New(services.CodeInputNotFound, "no record with id "+job.FileID)
	}

	state := &runState{
		job:      job,
		record:   rec,
		art:      r.Layout.ArtifactsFor(rec),
		isText:   strings.EqualFold(filepath.Ext(rec.DisplayName), ".txt"),
		logger:   logging.WithContext(ctx, r.logger()),
		progress: serialize(progress),
	}
	state.result.Record = rec
	if err := os.MkdirAll(state.art.OutputDir, 0o755); err != nil {
		return state.result, services.Wrap(services.CodeFileIO, "", "prepare output", state.art.OutputDir, err)
	}

	state.progress(fmt.Sprintf("开始处理：%s (步骤：%s)", rec.DisplayName, job.Steps))
	state.logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("display_name", rec.DisplayName),
		logging.String("steps", job.Steps.String()))

	for _, step := range job.Steps {
		stepCtx := services.WithScope(ctx, services.Scope{Step: step.String()})
		stepLogger := state.logger.With(logging.String(logging.FieldStep, step.String()))
		started := time.Now()
		stepLogger.Info("step started", logging.String(logging.FieldEventType, "step_start"))
		state.progress(fmt.Sprintf("[%d/4] %s", int(step), step))

		if err := r.runStep(stepCtx, step, state); err != nil {
			stepLogger.Error("step failed",
				logging.String(logging.FieldEventType, "step_failed"),
				logging.ErrorCode(err),
				logging.Error(err))
			return state.result, err
		}
		state.result.Completed = append(state.result.Completed, step)
		stepLogger.Info("step completed",
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Duration("elapsed", time.Since(started)))
	}
	return state.result, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, state *runState) error {
	switch step {
	case StepExtract:
		return r.extract(ctx, state)
	case StepTranscribe:
		return r.transcribe(ctx, state)
	case StepFix:
		return r.fix(ctx, state)
	case StepSummarize:
		return r.summarize(ctx, state)
	default:
		return services.Newf(services.CodeInvalidSteps, "unknown step %d", int(step))
	}
}

func (r *Runner) extract(ctx context.Context, state *runState) error {
	if state.isText {
		state.progress("文本输入，跳过音频提取")
		return nil
	}
	source, err := firstExisting(state.art.Source)
	if err != nil {
		return err
	}
	extractor := r.Extractor
	if extractor == nil {
		extractor = ffmpeg.NewExtractor("")
	}
	extractor = extractor.WithCommandRunner(CommandRunner(r.Exec, state.progress))
	if err := extractor.Extract(ctx, source, state.art.Audio); err != nil {
		return err
	}
	state.current = state.art.Audio
	state.result.Outputs = append(state.result.Outputs, state.art.Audio)
	state.progress("音频提取完成：" + filepath.Base(state.art.Audio))
	return nil
}

func (r *Runner) transcribe(ctx context.Context, state *runState) error {
	if state.isText {
		state.progress("文本输入，跳过语音转写")
		state.current = state.art.Source
		return nil
	}
	input := state.current
	if input == "" {
		var err error
		if input, err = firstExisting(state.art.Audio, state.art.Source); err != nil {
			return err
		}
	}
	if r.Transcriber == nil {
		return services.New(services.CodeInternal, "pipeline: transcriber not configured")
	}
	prompt := r.Settings.TranscribePrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultTranscribePrompt
	}
	svc := r.Transcriber.WithCommandRunner(CommandRunner(r.Exec, state.progress))
	path, err := svc.Transcribe(ctx, transcriber.Request{
		AudioPath: input,
		OutputDir: state.art.OutputDir,
		BaseName:  state.art.Base,
		Prompt:    prompt,
		Options:   state.job.Options,
	})
	if err != nil {
		return err
	}
	state.current = path
	state.result.Outputs = append(state.result.Outputs, path)

	return r.markDone(ctx, state, records.Patch{
		Transcribed:           records.Bool(true),
		LastTranscriptionTime: records.NewTimestamp(r.now()),
	})
}

func (r *Runner) fix(ctx context.Context, state *runState) error {
	input := state.current
	if input == "" {
		candidates := []string{state.art.Transcript}
		if state.isText {
			candidates = append(candidates, state.art.Source)
		}
		var err error
		if input, err = firstExisting(candidates...); err != nil {
			return err
		}
	}
	text, err := readText(input)
	if err != nil {
		return err
	}
	prompt := r.Settings.FixPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultFixPrompt
	}
	processor := r.processor(state, state.art.SplitDir, "fix")
	fixed, err := processor.Process(ctx, text, r.Settings.APIKey, prompt, r.Settings.ChunkSize)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(state.art.Fixed, []byte(fixed), 0o644); err != nil {
		return services.Wrap(services.CodeFileIO, "fix", "write fixed text", state.art.Fixed, err)
	}
	state.current = state.art.Fixed
	state.result.Outputs = append(state.result.Outputs, state.art.Fixed)
	state.progress("文本修正完成：" + filepath.Base(state.art.Fixed))

	return r.markDone(ctx, state, records.Patch{
		Fixed:       records.Bool(true),
		LastFixTime: records.NewTimestamp(r.now()),
	})
}

func (r *Runner) summarize(ctx context.Context, state *runState) error {
	input := state.current
	if input == "" {
		candidates := []string{state.art.Fixed, state.art.Transcript}
		if state.isText {
			candidates = append(candidates, state.art.Source)
		}
		var err error
		if input, err = firstExisting(candidates...); err != nil {
			return err
		}
	}
	text, err := readText(input)
	if err != nil {
		return err
	}
	if r.Prompts == nil {
		return services.New(services.CodePromptMissing, "prompt library not configured")
	}
	list, err := r.Prompts.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return services.New(services.CodePromptMissing, "no prompts in "+r.Prompts.Dir())
	}
	if r.Caller == nil {
		return services.New(services.CodeInternal, "pipeline: model caller not configured")
	}
	if strings.TrimSpace(r.Settings.APIKey) == "" {
		return services.New(services.CodeAIKeyMissing, "no api key configured for summaries")
	}

	outputs := make([]string, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.threads())
	for i, prompt := range list {
		g.Go(func() error {
			answer, err := r.runPrompt(gctx, state, prompt, text)
			if err != nil {
				return services.Wrap(services.CodeOf(err), "summarize", prompt.Name, "", err)
			}
			dest := filepath.Join(state.art.OutputDir, prompt.Output)
			if err := fileutil.WriteFileAtomic(dest, []byte(answer), 0o644); err != nil {
				return services.Wrap(services.CodeFileIO, "summarize", "write summary", dest, err)
			}
			outputs[i] = dest
			state.progress("总结完成：" + prompt.Output)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	state.result.Outputs = append(state.result.Outputs, outputs...)

	return r.markDone(ctx, state, records.Patch{
		Summarized:      records.Bool(true),
		LastSummaryTime: records.NewTimestamp(r.now()),
	})
}

func (r *Runner) runPrompt(ctx context.Context, state *runState, prompt prompts.Prompt, text string) (string, error) {
	if prompt.Chunked {
		dir := filepath.Join(state.art.SummaryWorkDir, prompt.Name)
		return r.processor(state, dir, "summarize "+prompt.Name).Process(ctx, text, r.Settings.APIKey, prompt.Text, r.Settings.ChunkSize)
	}
	answer, err := r.Caller.Call(ctx, text, r.Settings.APIKey, prompt.Text)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", services.New(services.CodeAICallFailed, "empty answer for prompt "+prompt.Name)
	}
	return answer, nil
}

func (r *Runner) processor(state *runState, debugDir, label string) *textproc.Processor {
	return &textproc.Processor{
		Caller:   r.Caller,
		Threads:  r.threads(),
		DebugDir: debugDir,
		Logger:   state.logger,
		Progress: func(done, total int) {
			state.progress(fmt.Sprintf("%s: %d/%d", label, done, total))
		},
	}
}

func (r *Runner) markDone(ctx context.Context, state *runState, patch records.Patch) error {
	rec, err := r.Records.Upsert(ctx, records.ByID(state.record.ID), patch)
	if err != nil {
		return err
	}
	state.record = rec
	state.result.Record = rec
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) threads() int {
	if r.Settings.Threads > 0 {
		return r.Settings.Threads
	}
	return 1
}

func firstExisting(candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	missing := ""
	if len(candidates) > 0 {
		missing = candidates[0]
	}
	return "", services.New(services.CodeInputNotFound, missing)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.CodeFileIO, "", "read input", path, err)
	}
	return string(data), nil
}

func serialize(fn func(string)) func(string) {
	if fn == nil {
		return func(string) {}
	}
	var mu sync.Mutex
	return func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fn(line)
	}
}
