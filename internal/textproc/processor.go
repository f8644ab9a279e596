// Package textproc fans a long text out to a text model chunk by chunk and
// reassembles the answers in their original order.
package textproc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"summify/internal/chunking"
	"summify/internal/logging"
	"summify/internal/services"
)

const defaultThreads = 4

// ChunkCaller sends one chunk to a model.
type ChunkCaller interface {
	Call(ctx context.Context, text, apiKey, prompt string) (string, error)
}

// Processor runs every chunk of a text through Caller on a bounded pool.
type Processor struct {
	Caller  ChunkCaller
	Threads int
	// DebugDir receives chunk_<i>_original.txt and chunk_<i>_processed.txt.
	// Empty disables the artifacts.
	DebugDir string
	Logger   *slog.Logger
	// Progress is called after each chunk settles, successful or not.
	Progress func(done, total int)
}

// PartialChunkError reports the chunks that failed or came back empty.
type PartialChunkError struct {
	Total  int
	Failed []int
	Errs   map[int]error
}

func (e *PartialChunkError) Error() string {
	indices := make([]string, len(e.Failed))
	for i, idx := range e.Failed {
		indices[i] = strconv.Itoa(idx)
	}
	msg := fmt.Sprintf("%d of %d chunk(s) failed: indices [%s]", len(e.Failed), e.Total, strings.Join(indices, ", "))
	if len(e.Failed) > 0 {
		if first := e.Errs[e.Failed[0]]; first != nil {
			msg += fmt.Sprintf("; chunk %d: %v", e.Failed[0], first)
		}
	}
	return msg
}

// Process splits text into chunks of chunkSize characters, sends each to the
// model with prompt, and returns the answers concatenated in chunk order.
// Any failed or empty chunk fails the whole call; no partial text is returned.
func (p *Processor) Process(ctx context.Context, text, apiKey, prompt string, chunkSize int) (string, error) {
	chunks := chunking.Split(text, chunkSize)
	total := len(chunks)
	if total == 0 {
		return "", nil
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", services.New(services.CodeAIKeyMissing, "no api key configured for text processing")
	}
	logger := logging.WithContext(ctx, p.Logger)

	if p.DebugDir != "" {
		if err := os.MkdirAll(p.DebugDir, 0o755); err != nil {
			return "", services.Wrap(services.CodeFileIO, "", "chunk debug dir", p.DebugDir, err)
		}
	}

	threads := p.Threads
	if threads <= 0 {
		threads = defaultThreads
	}

	var (
		mu      sync.Mutex
		results = make([]string, total)
		errs    = make(map[int]error)
		done    int
	)
	settle := func(index int, result string, err error) {
		mu.Lock()
		if err != nil {
			errs[index] = err
		} else {
			results[index] = result
		}
		done++
		current := done
		mu.Unlock()
		if p.Progress != nil {
			p.Progress(current, total)
		}
	}

	logger.Info("processing text in chunks",
		logging.Int("chunks", total),
		logging.Int("threads", threads),
		logging.Int("chunk_size", chunkSize),
	)
	started := time.Now()

	// The group's context is not used for cancellation: a failing chunk must
	// not abort its siblings, every outstanding call is joined.
	var group errgroup.Group
	group.SetLimit(threads)
	for _, chunk := range chunks {
		group.Go(func() error {
			p.writeDebug(logger, chunk.Index, "original", chunk.Text)
			out, err := p.Caller.Call(ctx, chunk.Text, apiKey, prompt)
			if err == nil && strings.TrimSpace(out) == "" {
				err = fmt.Errorf("chunk %d: empty result", chunk.Index)
			}
			if err != nil {
				logger.Warn("chunk failed",
					logging.Int(logging.FieldChunkIndex, chunk.Index),
					logging.String(logging.FieldEventType, "chunk_failed"),
					logging.Error(err),
				)
				settle(chunk.Index, "", err)
				return nil
			}
			p.writeDebug(logger, chunk.Index, "processed", out)
			settle(chunk.Index, out, nil)
			return nil
		})
	}
	_ = group.Wait()

	if len(errs) > 0 {
		failed := make([]int, 0, len(errs))
		for idx := range errs {
			failed = append(failed, idx)
		}
		sort.Ints(failed)
		partial := &PartialChunkError{Total: total, Failed: failed, Errs: errs}
		return "", services.Wrap(services.CodePartialChunkFailure, "", "", "", partial)
	}

	logger.Info("chunk processing completed",
		logging.Int("chunks", total),
		logging.Duration("duration", time.Since(started)),
	)
	return strings.Join(results, ""), nil
}

func (p *Processor) writeDebug(logger *slog.Logger, index int, kind, text string) {
	if p.DebugDir == "" {
		return
	}
	path := filepath.Join(p.DebugDir, fmt.Sprintf("chunk_%d_%s.txt", index, kind))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.Debug("write chunk artifact failed", logging.String("path", path), logging.Error(err))
	}
}
