package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"summify/internal/logging"
)

// uploadWatcher reconciles the record store after files land in the upload
// directory. Bursts of events collapse into one sync per debounce window.
type uploadWatcher struct {
	dir      string
	debounce time.Duration
	onChange func(context.Context)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newUploadWatcher(dir string, debounce time.Duration, onChange func(context.Context), logger *slog.Logger) (*uploadWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &uploadWatcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With(logging.String(logging.FieldComponent, "upload-watcher")),
		watcher:  watcher,
	}, nil
}

func (w *uploadWatcher) start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching upload directory",
		logging.String(logging.FieldEventType, "watcher_started"),
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce))
}

func (w *uploadWatcher) stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *uploadWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("upload directory changed",
				logging.String("file", filepath.Base(event.Name)),
				logging.String("op", event.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Error(err))
		case <-timer.C:
			if w.onChange != nil {
				w.onChange(ctx)
			}
		}
	}
}

// relevant ignores hidden files, which include in-flight upload temp files.
func relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)
}
