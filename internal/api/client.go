package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"summify/internal/services"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for a daemon bound to bind (host:port).
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{},
	}
}

// WithHTTPClient overrides the transport, mainly for tests.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.http = client
	}
	return c
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &out)
	return out, err
}

// Files lists live uploads.
func (c *Client) Files(ctx context.Context) ([]FileEntry, error) {
	var out FileListResponse
	if err := c.do(ctx, http.MethodGet, "/api/files", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// UploadOptions controls an upload. Steps is only used when AutoStart is set.
type UploadOptions struct {
	Name      string
	AutoStart bool
	Steps     string
	ModelType string
	ModelSize string
}

// Upload sends the file at path as a multipart form.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (FileResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileResponse{}, services.Wrap(services.CodeInputNotFound, "", "upload", path, err)
	}
	defer file.Close()

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = filepath.Base(path)
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return FileResponse{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return FileResponse{}, services.Wrap(services.CodeFileIO, "", "upload", "read "+path, err)
	}
	fields := map[string]string{
		"auto_start": strconv.FormatBool(opts.AutoStart),
		"steps":      opts.Steps,
		"model_type": opts.ModelType,
		"model_size": opts.ModelSize,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := form.WriteField(key, value); err != nil {
			return FileResponse{}, fmt.Errorf("write form field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return FileResponse{}, fmt.Errorf("close form: %w", err)
	}

	var out FileResponse
	err = c.do(ctx, http.MethodPost, "/api/files", body, form.FormDataContentType(), &out)
	return out, err
}

// DeleteFile removes an upload and its outputs.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, "", nil)
}

// RenameFile changes a file's display name.
func (c *Client) RenameFile(ctx context.Context, id, name string) (FileEntry, error) {
	payload, err := json.Marshal(RenameRequest{Name: name})
	if err != nil {
		return FileEntry{}, err
	}
	var out FileResponse
	err = c.do(ctx, http.MethodPost, "/api/files/"+url.PathEscape(id)+"/rename", bytes.NewReader(payload), "application/json", &out)
	return out.File, err
}

// Sync asks the daemon to reconcile the upload directory.
func (c *Client) Sync(ctx context.Context) (int, error) {
	var out SyncResponse
	err := c.do(ctx, http.MethodPost, "/api/files/sync", nil, "", &out)
	return out.Synced, err
}

// Submit queues a pipeline run and returns the job id.
func (c *Client) Submit(ctx context.Context, req JobRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var out JobResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs", bytes.NewReader(payload), "application/json", &out)
	return out.JobID, err
}

// History lists recent jobs, optionally for one file.
func (c *Client) History(ctx context.Context, fileID string, limit int) ([]HistoryEntry, error) {
	query := url.Values{}
	if fileID != "" {
		query.Set("file_id", fileID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/history"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Events fetches events after since. With follow set the daemon holds the
// request open until at least one event arrives.
func (c *Client) Events(ctx context.Context, since uint64, follow bool) (LogStreamResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if follow {
		query.Set("follow", "1")
	}
	var out LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/events?"+query.Encode(), nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var details services.Details
	if err := json.Unmarshal(raw, &details); err == nil && details.Code != "" {
		return &services.Error{Code: details.Code, Message: details.Message, Details: details.Details}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		text = resp.Status
	}
	return fmt.Errorf("api request failed (%s): %s", resp.Status, text)
}

// requestTimeout bounds non-streaming calls made by short-lived CLI commands.
const requestTimeout = 30 * time.Second

// WithTimeout returns ctx bounded by the default request timeout.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}
