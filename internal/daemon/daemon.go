package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"summify/internal/config"
	"summify/internal/history"
	"summify/internal/logging"
	"summify/internal/notifications"
	"summify/internal/pipeline"
	"summify/internal/records"
	"summify/internal/services"
	"summify/internal/staging"
	"summify/internal/workflow"
)

// Dependencies are the long-lived services the daemon coordinates. Records,
// History, and Scheduler are required.
type Dependencies struct {
	Records   *records.Store
	History   *history.Store
	Scheduler *workflow.Scheduler
	Notifier  notifications.Service
	Hub       *logging.StreamHub
	Logger    *slog.Logger
}

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	records   *records.Store
	history   *history.Store
	scheduler *workflow.Scheduler
	notifier  notifications.Service
	hub       *logging.StreamHub

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	watcher *uploadWatcher

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	RecordsPath  string
	HistoryPath  string
	Files        int
	Queue        workflow.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies) (*Daemon, error) {
	if cfg == nil || deps.Records == nil || deps.History == nil || deps.Scheduler == nil {
		return nil, errors.New("daemon requires config, record store, history store, and scheduler")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "summify.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		records:   deps.Records,
		history:   deps.History,
		scheduler: deps.Scheduler,
		notifier:  notifier,
		hub:       deps.Hub,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, reconciles stores with disk, and begins
// serving the API and watching the upload directory.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another summify daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.recover(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if d.cfg.Workflow.WatchUploads {
		debounce := time.Duration(d.cfg.Workflow.WatchDebounceMS) * time.Millisecond
		watcher, err := newUploadWatcher(d.cfg.Paths.UploadDir, debounce, d.syncFromWatcher, d.logger)
		if err != nil {
			d.logger.Warn("upload watcher unavailable; new files need a manual sync",
				logging.String(logging.FieldEventType, "watcher_start_failed"),
				logging.String(logging.FieldErrorHint, "run `summify files sync` after copying files"),
				logging.Error(err))
		} else {
			watcher.start(runCtx)
			d.watcher = watcher
		}
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("summify daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.Paths.APIBind))
	return nil
}

// recover fails jobs a previous process left behind and brings the record
// store in line with the upload directory.
func (d *Daemon) recover(ctx context.Context) error {
	interrupted, err := d.history.FailInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover history: %w", err)
	}
	if interrupted > 0 {
		d.logger.Warn("jobs from a previous run were interrupted",
			logging.String(logging.FieldEventType, "jobs_interrupted"),
			logging.Int64("count", interrupted),
			logging.String(logging.FieldErrorHint, "re-submit the affected files"))
	}

	exts := d.cfg.Media.AllowedExtensions
	migrated, err := d.records.Migrate(ctx, d.cfg.Paths.UploadDir, d.cfg.Paths.OutputDir, exts)
	if err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}
	if migrated {
		d.logger.Info("record store migrated", logging.String(logging.FieldEventType, "records_migrated"))
	}
	if _, err := d.records.SyncWithUpload(ctx, d.cfg.Paths.UploadDir, exts); err != nil {
		return fmt.Errorf("sync uploads: %w", err)
	}
	d.cleanWorkDir(ctx)
	return nil
}

// cleanWorkDir drops chunk debug folders of deleted records and those older
// than the retention window. Failures only cost disk space.
func (d *Daemon) cleanWorkDir(ctx context.Context) {
	doc, err := d.records.Load(ctx)
	if err != nil {
		d.logger.Warn("work directory cleanup skipped", logging.Error(err))
		return
	}
	live := make(map[string]struct{}, len(doc.Records))
	for _, rec := range doc.Records {
		live[rec.ID] = struct{}{}
	}
	result := staging.Clean(ctx, d.cfg.Paths.WorkDir, staging.Policy{
		MaxAge: time.Duration(d.cfg.Workflow.WorkRetentionHours) * time.Hour,
		Live:   live,
	}, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("work directory cleaned",
			logging.String(logging.FieldEventType, "work_cleanup_summary"),
			logging.Int("removed", len(result.Removed)),
			logging.Int64("freed_bytes", result.FreedBytes))
	}
}

func (d *Daemon) syncFromWatcher(ctx context.Context) {
	if _, err := d.SyncUploads(ctx); err != nil && ctx.Err() == nil {
		d.logger.Warn("upload sync failed",
			logging.String(logging.FieldEventType, "watcher_sync_failed"),
			logging.Error(err))
	}
}

// Stop halts the scheduler, the API, and the watcher, then releases the lock.
func (d *Daemon) Stop(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.watcher != nil {
		d.watcher.stop()
		d.watcher = nil
	}
	d.api.stop()
	if err := d.scheduler.Stop(ctx); err != nil {
		d.logger.Warn("scheduler did not stop in time",
			logging.String(logging.FieldEventType, "scheduler_stop_timeout"),
			logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("summify daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the history database.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout())
	defer cancel()
	d.Stop(ctx)
	_ = d.scheduler.Stop(ctx)
	return d.history.Close()
}

func (d *Daemon) shutdownTimeout() time.Duration {
	if d.cfg.Workflow.ShutdownTimeoutSec > 0 {
		return time.Duration(d.cfg.Workflow.ShutdownTimeoutSec) * time.Second
	}
	return 10 * time.Second
}

// APIAddr returns the address the API listener is bound to, or "" before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// ListFiles returns live uploads, newest first.
func (d *Daemon) ListFiles(ctx context.Context) ([]records.View, error) {
	return d.records.List(ctx, d.cfg.Paths.UploadDir, d.cfg.Media.AllowedExtensions)
}

// Upload stores src under a new record.
func (d *Daemon) Upload(ctx context.Context, name string, src io.Reader) (records.FileRecord, error) {
	return d.records.Import(ctx, src, name, d.cfg.Paths.UploadDir, d.cfg.Media.AllowedExtensions)
}

// View returns the live listing entry for one record.
func (d *Daemon) View(ctx context.Context, id string) (records.View, error) {
	views, err := d.ListFiles(ctx)
	if err != nil {
		return records.View{}, err
	}
	for _, view := range views {
		if view.ID == id {
			return view, nil
		}
	}
	return records.View{}, services.New(services.CodeInputNotFound, "no live file with id "+id)
}

// DeleteFile removes an upload, its outputs, and its record. Files with a
// queued or running job are refused.
func (d *Daemon) DeleteFile(ctx context.Context, id string) error {
	if d.busy(id) {
		return services.New(services.CodeInvalidArgs, "file "+id+" has a queued or running job")
	}
	return d.records.Delete(ctx, records.ByID(id), d.cfg.Paths.UploadDir, d.cfg.Paths.OutputDir)
}

// RenameFile changes the display name of a record. Files with a queued or
// running job are refused, like DeleteFile.
func (d *Daemon) RenameFile(ctx context.Context, id, name string) (records.FileRecord, error) {
	if d.busy(id) {
		return records.FileRecord{}, services.New(services.CodeInvalidArgs, "file "+id+" has a queued or running job")
	}
	return d.records.Rename(ctx, records.ByID(id), name)
}

// SyncUploads registers files dropped into the upload directory.
func (d *Daemon) SyncUploads(ctx context.Context) (int, error) {
	return d.records.SyncWithUpload(ctx, d.cfg.Paths.UploadDir, d.cfg.Media.AllowedExtensions)
}

// Submit queues a pipeline run and returns its job id.
func (d *Daemon) Submit(ctx context.Context, job pipeline.Job) (string, error) {
	return d.scheduler.Enqueue(ctx, job)
}

// History lists recent jobs.
func (d *Daemon) History(ctx context.Context, opts history.ListOptions) ([]history.Job, error) {
	return d.history.List(ctx, opts)
}

// Events returns hub events after since.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, follow bool) ([]logging.LogEvent, uint64, error) {
	return d.hub.Fetch(ctx, since, limit, follow)
}

// TestNotification sends a test notification through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		RecordsPath:  d.records.Path(),
		HistoryPath:  d.history.Path(),
		Queue:        d.scheduler.Snapshot(),
	}
	if views, err := d.ListFiles(ctx); err == nil {
		status.Files = len(views)
	}
	return status
}

func (d *Daemon) busy(fileID string) bool {
	snap := d.scheduler.Snapshot()
	if snap.Active != nil && snap.Active.FileID == fileID {
		return true
	}
	for _, job := range snap.Queued {
		if job.FileID == fileID {
			return true
		}
	}
	return false
}
