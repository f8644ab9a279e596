package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"summify/internal/api"
	"summify/internal/config"
	"summify/internal/history"
	"summify/internal/logging"
	"summify/internal/pipeline"
	"summify/internal/services"
	"summify/internal/services/transcriber"
)

// multipartMemory caps the part of an upload held in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

const requestIDHeader = "X-Request-ID"

type apiServer struct {
	bind           string
	logger         *slog.Logger
	daemon         *Daemon
	maxUploadBytes int64

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	srv := &apiServer{
		bind:           strings.TrimSpace(cfg.Paths.APIBind),
		logger:         logger,
		daemon:         d,
		maxUploadBytes: int64(cfg.Media.MaxUploadMB) << 20,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/files", srv.handleListFiles)
	mux.HandleFunc("POST /api/files", srv.handleUpload)
	mux.HandleFunc("POST /api/files/sync", srv.handleSync)
	mux.HandleFunc("DELETE /api/files/{id}", srv.handleDeleteFile)
	mux.HandleFunc("POST /api/files/{id}/rename", srv.handleRenameFile)
	mux.HandleFunc("POST /api/jobs", srv.handleSubmit)
	mux.HandleFunc("GET /api/history", srv.handleHistory)
	mux.HandleFunc("GET /api/events", srv.handleEvents)
	srv.handler = withRequestID(srv.requireToken(cfg.Paths.APIToken, mux))

	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address, useful when binding port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		RecordsPath:  status.RecordsPath,
		HistoryPath:  status.HistoryPath,
		Files:        status.Files,
		Queue:        api.FromSnapshot(status.Queue),
	})
}

func (s *apiServer) handleListFiles(w http.ResponseWriter, r *http.Request) {
	views, err := s.daemon.ListFiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: api.FromViews(views)})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, services.Newf(services.CodeUploadFailed, "upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, r, services.Wrap(services.CodeInvalidArgs, "", "upload", "parse multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, services.New(services.CodeInvalidArgs, "form field \"file\" is required"))
		return
	}
	defer file.Close()

	var job *pipeline.Job
	if autoStart, _ := strconv.ParseBool(r.FormValue("auto_start")); autoStart {
		stepsValue := r.FormValue("steps")
		if strings.TrimSpace(stepsValue) == "" {
			stepsValue = pipeline.AllSteps.String()
		}
		steps, err := pipeline.ParseSteps(stepsValue)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		job = &pipeline.Job{
			Steps: steps,
			Options: transcriber.Options{
				ModelType: r.FormValue("model_type"),
				ModelSize: r.FormValue("model_size"),
			},
		}
	}

	rec, err := s.daemon.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.daemon.View(r.Context(), rec.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.FileResponse{File: api.FromView(view)}
	if job != nil {
		job.FileID = rec.ID
		id, err := s.daemon.Submit(r.Context(), *job)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.JobID = id
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	n, err := s.daemon.SyncUploads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SyncResponse{Synced: n})
}

func (s *apiServer) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.DeleteFile(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req api.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, services.Wrap(services.CodeInvalidArgs, "", "rename", "decode body", err))
		return
	}
	rec, err := s.daemon.RenameFile(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.daemon.View(r.Context(), rec.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileResponse{File: api.FromView(view)})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, services.Wrap(services.CodeInvalidArgs, "", "submit", "decode body", err))
		return
	}
	steps, err := pipeline.ParseSteps(req.Steps)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.daemon.Submit(r.Context(), pipeline.Job{
		FileID:  req.FileID,
		Steps:   steps,
		Options: transcriber.Options{ModelType: req.ModelType, ModelSize: req.ModelSize},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{JobID: id})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := history.ListOptions{FileID: strings.TrimSpace(query.Get("file_id"))}
	opts.Limit, _ = strconv.Atoi(query.Get("limit"))
	for _, value := range query["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			opts.Statuses = append(opts.Statuses, history.Status(trimmed))
		}
	}
	jobs, err := s.daemon.History(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries := make([]api.HistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, api.FromHistoryJob(job))
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Jobs: entries})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	fileID := strings.TrimSpace(query.Get("file_id"))
	jobID := strings.TrimSpace(query.Get("job_id"))

	events, next, err := s.daemon.Events(r.Context(), since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, r, err)
		return
	}

	converted := api.FromLogEvents(events)
	filtered := make([]api.LogEvent, 0, len(converted))
	for _, evt := range converted {
		if fileID != "" && evt.FileID != fileID {
			continue
		}
		if jobID != "" && evt.JobID != jobID {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	details := services.DetailsOf(err)
	status := api.HTTPStatus(details.Code)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.log()).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.ErrorCode(err),
			logging.Error(err))
	}
	s.writeJSON(w, status, details)
}

// withRequestID tags each request with a correlation id, echoing a
// caller-supplied X-Request-ID when present.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithScope(r.Context(), services.Scope{RequestID: id})))
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
