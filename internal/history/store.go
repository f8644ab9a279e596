package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"summify/internal/services"
)

// Store manages job history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultListLimit = 50
)

// ErrNotFound is returned when a job id has no row.
var ErrNotFound = errors.New("job not found")

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.New(services.CodeInvalidArgs, "history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Insert records a newly queued job.
func (s *Store) Insert(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return services.New(services.CodeInvalidArgs, "job id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	_, err := s.exec(ctx,
		`INSERT INTO jobs (
            job_id, file_id, display_name, steps, model_type, model_size,
            status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.FileID,
		job.DisplayName,
		job.Steps,
		nullableString(job.ModelType),
		nullableString(job.ModelSize),
		string(job.Status),
		formatTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// MarkRunning moves a job to running.
func (s *Store) MarkRunning(ctx context.Context, jobID string) error {
	return s.update(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE job_id = ?`,
		string(StatusRunning), formatTime(s.now()), jobID)
}

// UpdateProgress stores the latest progress line of a running job.
func (s *Store) UpdateProgress(ctx context.Context, jobID, message string) error {
	return s.update(ctx,
		`UPDATE jobs SET progress_message = ? WHERE job_id = ?`,
		nullableString(message), jobID)
}

// MarkCompleted moves a job to completed.
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.update(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, error_code = NULL, error_message = NULL, error_details = NULL
         WHERE job_id = ?`,
		string(StatusCompleted), formatTime(s.now()), jobID)
}

// MarkFailed moves a job to failed with the coded error triple.
func (s *Store) MarkFailed(ctx context.Context, jobID string, details services.Details) error {
	return s.update(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, error_code = ?, error_message = ?, error_details = ?
         WHERE job_id = ?`,
		string(StatusFailed), formatTime(s.now()),
		string(details.Code), details.Message, nullableString(details.Details),
		jobID)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailInterrupted marks every queued or running job failed and returns how
// many rows changed. Only the process holding the daemon lock calls it.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, error_code = ?, error_message = ?, error_details = ?
         WHERE status IN (?, ?)`,
		string(StatusFailed), formatTime(s.now()),
		string(services.CodeTaskFailed), services.CodeTaskFailed.Message(), InterruptedReason,
		string(StatusQueued), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const selectColumns = `job_id, file_id, display_name, steps, model_type, model_size, status,
    progress_message, error_code, error_message, error_details, created_at, started_at, finished_at`

// Get returns one job or ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+selectColumns+" FROM jobs WHERE job_id = ?", jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Job, error) {
	var (
		where []string
		args  []any
	)
	if opts.FileID != "" {
		where = append(where, "file_id = ?")
		args = append(args, opts.FileID)
	}
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := "SELECT " + selectColumns + " FROM jobs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Prune deletes finished jobs older than cutoff and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND created_at < ?`,
		string(StatusCompleted), string(StatusFailed), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job                             Job
		status, created                 string
		modelType, modelSize, progress  sql.NullString
		errCode, errMessage, errDetails sql.NullString
		started, finished               sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.FileID, &job.DisplayName, &job.Steps, &modelType, &modelSize, &status,
		&progress, &errCode, &errMessage, &errDetails, &created, &started, &finished,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	job.ModelType = modelType.String
	job.ModelSize = modelSize.String
	job.ProgressMessage = progress.String
	job.CreatedAt = parseTime(created)
	job.StartedAt = parseNullableTime(started)
	job.FinishedAt = parseNullableTime(finished)
	if errCode.Valid && errCode.String != "" {
		job.Error = &services.Details{
			Code:    services.Code(errCode.String),
			Message: errMessage.String,
			Details: errDetails.String,
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
