package textproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/services"
)

type funcCaller func(ctx context.Context, text, apiKey, prompt string) (string, error)

func (f funcCaller) Call(ctx context.Context, text, apiKey, prompt string) (string, error) {
	return f(ctx, text, apiKey, prompt)
}

func TestProcessReassemblesInIndexOrder(t *testing.T) {
	// The third chunk finishes first; output order must still follow the input.
	delays := map[string]time.Duration{
		"这是第一句。": 60 * time.Millisecond,
		"这是第二句。": 30 * time.Millisecond,
		"这是第三句。": 0,
	}
	caller := funcCaller(func(_ context.Context, text, _, _ string) (string, error) {
		time.Sleep(delays[text])
		return text + "[OK]", nil
	})
	dir := t.TempDir()
	p := &Processor{Caller: caller, Threads: 3, DebugDir: dir}

	out, err := p.Process(context.Background(), "这是第一句。这是第二句。这是第三句。", "key", "prompt", 10)
	require.NoError(t, err)
	assert.Equal(t, "这是第一句。[OK]这是第二句。[OK]这是第三句。[OK]", out)

	original, err := os.ReadFile(filepath.Join(dir, "chunk_2_original.txt"))
	require.NoError(t, err)
	assert.Equal(t, "这是第三句。", string(original))
	processed, err := os.ReadFile(filepath.Join(dir, "chunk_0_processed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "这是第一句。[OK]", string(processed))
}

func TestProcessEmptyInput(t *testing.T) {
	p := &Processor{Caller: funcCaller(func(context.Context, string, string, string) (string, error) {
		t.Fatal("caller must not be invoked")
		return "", nil
	})}
	out, err := p.Process(context.Background(), "  \n ", "key", "prompt", 10)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestProcessFailsWhenAnyChunkFails(t *testing.T) {
	var calls atomic.Int32
	caller := funcCaller(func(_ context.Context, text, _, _ string) (string, error) {
		calls.Add(1)
		if strings.HasPrefix(text, "B") {
			return "", errors.New("retries exhausted")
		}
		return "ok", nil
	})
	p := &Processor{Caller: caller, Threads: 2}

	out, err := p.Process(context.Background(), "Aaaa. Bbbb. Cccc.", "key", "prompt", 6)
	require.Error(t, err)
	assert.Equal(t, "", out)
	assert.EqualValues(t, 3, calls.Load(), "siblings must still run")
	assert.True(t, errors.Is(err, services.ErrPartialChunkFailure))

	var partial *PartialChunkError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 3, partial.Total)
	assert.Equal(t, []int{1}, partial.Failed)
	assert.Contains(t, err.Error(), "indices [1]")
}

func TestProcessTreatsEmptyResultAsFailure(t *testing.T) {
	caller := funcCaller(func(_ context.Context, text, _, _ string) (string, error) {
		if strings.HasPrefix(text, "C") {
			return "   ", nil
		}
		return text, nil
	})
	p := &Processor{Caller: caller}
	_, err := p.Process(context.Background(), "Aaaa. Bbbb. Cccc.", "key", "prompt", 6)
	var partial *PartialChunkError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []int{2}, partial.Failed)
}

func TestProcessRespectsThreadLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	caller := funcCaller(func(_ context.Context, text, _, _ string) (string, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return text, nil
	})
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "s%02d. ", i)
	}
	var progress atomic.Int32
	p := &Processor{Caller: caller, Threads: 2, Progress: func(done, total int) {
		progress.Add(1)
		if total != 12 {
			t.Errorf("unexpected total %d", total)
		}
	}}
	out, err := p.Process(context.Background(), sb.String(), "key", "prompt", 5)
	require.NoError(t, err)
	assert.Equal(t, sb.String(), out)
	assert.LessOrEqual(t, maxSeen, 2)
	assert.EqualValues(t, 12, progress.Load())
}

func TestProcessMissingKeyFailsBeforeFanOut(t *testing.T) {
	caller := funcCaller(func(context.Context, string, string, string) (string, error) {
		t.Fatal("caller must not be invoked without a key")
		return "", nil
	})
	p := &Processor{Caller: caller}
	_, err := p.Process(context.Background(), "one. two.", "", "prompt", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrAIKeyMissing))
}
