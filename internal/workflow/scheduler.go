package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"summify/internal/history"
	"summify/internal/logging"
	"summify/internal/notifications"
	"summify/internal/pipeline"
	"summify/internal/records"
	"summify/internal/services"
)

// JobRunner executes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, job pipeline.Job, progress func(string)) (pipeline.Result, error)
}

// HistoryStore records job lifecycle transitions.
type HistoryStore interface {
	Insert(ctx context.Context, job history.Job) error
	MarkRunning(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID, message string) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, details services.Details) error
}

// Dependencies wires a Scheduler. Runner and Records are required.
type Dependencies struct {
	Runner   JobRunner
	Records  pipeline.RecordStore
	History  HistoryStore
	Notifier notifications.Service
	Hub      *logging.StreamHub
	Logger   *slog.Logger
}

type queuedJob struct {
	job         pipeline.Job
	displayName string
}

// Scheduler drains a FIFO of pipeline jobs on a single worker goroutine. The
// worker starts on the first Enqueue and runs until Stop.
type Scheduler struct {
	runner   JobRunner
	records  pipeline.RecordStore
	history  HistoryStore
	notifier notifications.Service
	hub      *logging.StreamHub
	logger   *slog.Logger

	newID            func() string
	now              func() time.Time
	progressInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	startMu sync.Mutex
	started bool
	done    chan struct{}

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []queuedJob
	active    *queuedJob
	stopped   bool
	listeners map[int]Listener
	nextID    int
	processed int
	failed    int
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(deps Dependencies) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:           deps.Runner,
		records:          deps.Records,
		history:          deps.History,
		notifier:         notifier,
		hub:              deps.Hub,
		logger:           logging.NewComponentLogger(logger, "workflow"),
		newID:            func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:              time.Now,
		progressInterval: time.Second,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
		listeners:        make(map[int]Listener),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Enqueue validates job, appends it to the queue, and returns its id without
// waiting for it to run.
func (s *Scheduler) Enqueue(ctx context.Context, job pipeline.Job) (string, error) {
	if s.runner == nil || s.records == nil {
		return "", services.New(services.CodeInternal, "scheduler is not wired")
	}
	if strings.TrimSpace(job.FileID) == "" {
		return "", services.New(services.CodeInvalidArgs, "file id is required")
	}
	steps, err := pipeline.ParseSteps(job.Steps.String())
	if err != nil {
		return "", err
	}
	job.Steps = steps
	rec, ok, err := s.records.Get(ctx, records.ByID(job.FileID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", services.New(services.CodeInputNotFound, "no record with id "+job.FileID)
	}
	if job.ID == "" {
		job.ID = s.newID()
	}
	item := queuedJob{job: job, displayName: rec.DisplayName}

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return "", ErrStopped
	}

	// The history row and the queued event precede the queue append so the
	// worker never reports on a job its listeners have not seen.
	if s.history != nil {
		if err := s.history.Insert(ctx, history.Job{
			ID:          job.ID,
			FileID:      job.FileID,
			DisplayName: rec.DisplayName,
			Steps:       job.Steps.String(),
			ModelType:   job.Options.ModelType,
			ModelSize:   job.Options.ModelSize,
			Status:      history.StatusQueued,
			CreatedAt:   s.now(),
		}); err != nil {
			s.logger.Warn("history insert failed; job will run without a history row",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldEventType, "history_insert_failed"),
				logging.String(logging.FieldErrorHint, "check history database access"),
				logging.Error(err))
		}
	}
	s.emit(Event{Type: EventQueued, JobID: job.ID, FileID: job.FileID, DisplayName: rec.DisplayName})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		if s.history != nil {
			details := services.DetailsOf(services.Wrap(services.CodeTaskFailed, "", "enqueue", "scheduler stopped", ErrStopped))
			if herr := s.history.MarkFailed(context.WithoutCancel(ctx), job.ID, details); herr != nil {
				s.logger.Debug("history mark failed failed", logging.Error(herr))
			}
		}
		return "", ErrStopped
	}
	s.queue = append(s.queue, item)
	depth := len(s.queue)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldFileID, job.FileID),
		logging.String(logging.FieldEventType, "job_queued"),
		logging.String("steps", job.Steps.String()),
		logging.Int("queue_depth", depth))
	s.ensureWorker()
	return job.ID, nil
}

func (s *Scheduler) ensureWorker() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it. Events published before Subscribe are not replayed.
func (s *Scheduler) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot describes the queue at one instant.
type Snapshot struct {
	Running bool           `json:"running"`
	Active  *pipeline.Job  `json:"active,omitempty"`
	Queued  []pipeline.Job `json:"queued"`
}

// Snapshot returns the active job and the jobs waiting behind it.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Queued: make([]pipeline.Job, 0, len(s.queue))}
	if s.active != nil {
		job := s.active.job
		snap.Active = &job
		snap.Running = true
	}
	for _, item := range s.queue {
		snap.Queued = append(snap.Queued, item.job)
	}
	return snap
}

// Wait blocks until the queue is empty and no job is running, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	stopWake := make(chan struct{})
	defer close(stopWake)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stopWake:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 || s.active != nil {
		if s.stopped {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return nil
}

// Stop cancels the running job, discards queued jobs, and waits for the
// worker to exit or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.queue)
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	s.cancel()

	if dropped > 0 {
		s.logger.Warn("scheduler stopped with queued jobs",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldEventType, "queue_dropped"),
			logging.String(logging.FieldErrorHint, "re-submit the files after restart"))
	}

	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.active = &item
		s.mu.Unlock()

		s.execute(item)

		s.mu.Lock()
		s.active = nil
		drained := len(s.queue) == 0 && !s.stopped
		processed, failed := s.processed, s.failed
		if drained {
			s.processed, s.failed = 0, 0
		}
		s.cond.Broadcast()
		s.mu.Unlock()

		if drained {
			s.publish(notifications.EventQueueDrained, notifications.Payload{"processed": processed, "failed": failed})
		}
	}
}

func (s *Scheduler) execute(item queuedJob) {
	job := item.job
	ctx := services.WithScope(s.ctx, services.Scope{FileID: job.FileID, JobID: job.ID})
	logger := logging.WithContext(ctx, s.logger)
	started := s.now()

	if s.history != nil {
		if err := s.history.MarkRunning(ctx, job.ID); err != nil {
			logger.Debug("history mark running failed", logging.Error(err))
		}
	}
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("steps", job.Steps.String()))

	var lastProgress time.Time
	progress := func(line string) {
		s.emit(Event{Type: EventProgress, JobID: job.ID, FileID: job.FileID, DisplayName: item.displayName, Line: line})
		if s.history == nil {
			return
		}
		if now := s.now(); now.Sub(lastProgress) >= s.progressInterval {
			lastProgress = now
			if err := s.history.UpdateProgress(ctx, job.ID, line); err != nil {
				logger.Debug("history progress update failed", logging.Error(err))
			}
		}
	}

	result, err := s.run(ctx, job, progress)
	elapsed := s.now().Sub(started)
	if err != nil {
		details := services.DetailsOf(err)
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		if s.history != nil {
			if herr := s.history.MarkFailed(context.WithoutCancel(ctx), job.ID, details); herr != nil {
				logger.Debug("history mark failed failed", logging.Error(herr))
			}
		}
		logger.Error("job failed",
			logging.String(logging.FieldEventType, "job_run_failed"),
			logging.ErrorCode(err),
			logging.String(logging.FieldErrorHint, hintFor(details.Code)),
			logging.Duration("elapsed", elapsed),
			logging.Error(err))
		s.emit(Event{Type: EventFailed, JobID: job.ID, FileID: job.FileID, DisplayName: item.displayName, Error: &details})
		s.publish(notifications.EventJobFailed, notifications.Payload{
			"file":  item.displayName,
			"code":  string(details.Code),
			"error": details.Message + ": " + details.Details,
		})
		return
	}

	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
	if s.history != nil {
		if herr := s.history.MarkCompleted(ctx, job.ID); herr != nil {
			logger.Debug("history mark completed failed", logging.Error(herr))
		}
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_run_completed"),
		logging.Duration("elapsed", elapsed),
		logging.Int("outputs", len(result.Outputs)))
	s.emit(Event{Type: EventComplete, JobID: job.ID, FileID: job.FileID, DisplayName: item.displayName, Outputs: result.Outputs})
	s.publish(notifications.EventJobCompleted, notifications.Payload{
		"file":     item.displayName,
		"steps":    job.Steps.String(),
		"duration": elapsed,
	})
}

// run shields the worker loop from panics inside a job.
func (s *Scheduler) run(ctx context.Context, job pipeline.Job, progress func(string)) (result pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.New(services.CodeInternal, fmt.Sprintf("job panicked: %v", r))
		}
	}()
	return s.runner.Run(ctx, job, progress)
}

func (s *Scheduler) emit(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = s.now()
	}
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(evt.logEvent())
	}
	for _, fn := range listeners {
		fn(evt)
	}
}

func (s *Scheduler) publish(event notifications.Event, payload notifications.Payload) {
	if err := s.notifier.Publish(context.WithoutCancel(s.ctx), event, payload); err != nil {
		s.logger.Debug("notification failed",
			logging.String("notification", string(event)),
			logging.Error(err))
	}
}

func hintFor(code services.Code) string {
	switch code {
	case services.CodeAIKeyMissing:
		return "set ai.api_key or the backend's API key environment variable"
	case services.CodeInputNotFound:
		return "run the earlier steps first or re-upload the file"
	case services.CodeExtractionFailed:
		return "check that ffmpeg is installed and the file has an audio track"
	case services.CodeTranscriptionFailed, services.CodeTaskFailed:
		return "check the transcription engine installation and the job log"
	case services.CodePartialChunkFailure, services.CodeAICallFailed:
		return "check the AI backend status and retry"
	case services.CodePromptMissing:
		return "add a prompt file to the prompts directory"
	default:
		return "see the job log for details"
	}
}
