package pipeline

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/services"
)

func TestCleanLine(t *testing.T) {
	assert.Equal(t, "loading model", CleanLine("\x1b[32mloading model\x1b[0m\r"))
	assert.Equal(t, "", CleanLine("  \r "))
}

func TestShouldSkipLine(t *testing.T) {
	skipped := []string{
		"",
		"0% | 0/10",
		"100% |██████████| 10/10",
		"12.3it/s",
		"rtf_avg: 0.02",
		"{'load_data': 0.01, 'extract_feat': 0.2, 'forward': 1.3}",
		"time_speech: 12.0, time_escape: 0.8",
	}
	for _, line := range skipped {
		assert.True(t, ShouldSkipLine(line), "expected %q to be skipped", line)
	}
	kept := []string{"Detected language: Chinese", "[00:00.000 --> 00:04.000] 大家好"}
	for _, line := range kept {
		assert.False(t, ShouldSkipLine(line), "expected %q to be kept", line)
	}
}

func TestScanLinesOrCR(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("a\r\nb\rc\nd"))
	scanner.Split(scanLinesOrCR)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestExecStreamsFilteredLines(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var lines []string
	err := Exec(context.Background(), "sh", []string{"-c", "echo hello; echo '50% 3.1it/s' 1>&2; echo world 1>&2"}, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hello", "world"}, lines)
}

func TestExecReportsExitCodeAndTail(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := services.WithScope(context.Background(), services.Scope{Step: "transcribe"})
	err := Exec(ctx, "sh", []string{"-c", "echo boom 1>&2; exit 3"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrTaskFailed))
	details := services.DetailsOf(err)
	assert.Contains(t, details.Details, "exit code 3")
	assert.Contains(t, details.Details, "boom")
	assert.Contains(t, details.Details, "transcribe")
}

func TestCommandRunnerForwardsArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	var lines []string
	fake := func(_ context.Context, name string, args []string, onLine func(string)) error {
		gotName, gotArgs = name, args
		onLine("progress")
		return nil
	}
	run := CommandRunner(fake, func(line string) { lines = append(lines, line) })
	require.NoError(t, run(context.Background(), "ffmpeg", "-i", "in"))
	assert.Equal(t, "ffmpeg", gotName)
	assert.Equal(t, []string{"-i", "in"}, gotArgs)
	assert.Equal(t, []string{"progress"}, lines)
}
