package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"summify/internal/services"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// CleanLine strips ANSI escapes and carriage returns from a tool output line.
func CleanLine(line string) string {
	line = ansiEscape.ReplaceAllString(line, "")
	return strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
}

// ShouldSkipLine reports whether a cleaned line is noise: blank lines,
// progress bars, throughput counters, and FunASR timing dumps.
func ShouldSkipLine(line string) bool {
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "0% ") || strings.HasPrefix(line, "100% ") {
		return true
	}
	if strings.Contains(line, "it/s") || strings.Contains(line, "rtf_avg") {
		return true
	}
	if strings.Contains(line, "time_speech") && strings.Contains(line, "time_escape") {
		return true
	}
	if strings.Contains(line, "load_data") && strings.Contains(line, "extract_feat") && strings.Contains(line, "forward") {
		return true
	}
	if strings.HasPrefix(line, "{'load_data'") || strings.HasPrefix(line, `{"load_data"`) {
		return true
	}
	return false
}

// ExecFunc runs an external tool, forwarding filtered output lines.
type ExecFunc func(ctx context.Context, name string, args []string, onLine func(string)) error

const outputTailLines = 5

// Exec runs name with args, streams stdout and stderr line by line through
// CleanLine and ShouldSkipLine to onLine, and waits for exit. A non-zero exit
// is reported as a task failure carrying the exit code and the last lines of
// output.
func Exec(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.CodeInternal, "", name, "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.CodeInternal, "", name, "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.CodeTaskFailed, "", name, "start", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tail    []string
		scanErr error
		once    sync.Once
	)
	forward := func(raw string) {
		line := CleanLine(raw)
		if ShouldSkipLine(line) {
			return
		}
		mu.Lock()
		tail = append(tail, line)
		if len(tail) > outputTailLines {
			tail = tail[len(tail)-outputTailLines:]
		}
		if onLine != nil {
			onLine(line)
		}
		mu.Unlock()
	}
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		scanner.Split(scanLinesOrCR)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil {
		detail := "exit code -1"
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			detail = fmt.Sprintf("exit code %d", exitErr.ExitCode())
		}
		if len(tail) > 0 {
			detail += "; last output: " + strings.Join(tail, " | ")
		}
		return services.Wrap(services.CodeTaskFailed, services.ScopeOf(ctx).Step, name, detail, waitErr)
	}
	if scanErr != nil {
		return services.Wrap(services.CodeTaskFailed, "", name, "read output", scanErr)
	}
	return nil
}

// scanLinesOrCR splits on \n, \r\n, or a lone \r so progress redraws become
// separate lines.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Need more data to tell \r from \r\n.
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// CommandRunner adapts exec to the collaborator runner signature, routing
// output lines to onLine.
func CommandRunner(run ExecFunc, onLine func(string)) services.CommandRunner {
	if run == nil {
		run = Exec
	}
	return func(ctx context.Context, name string, args ...string) error {
		return run(ctx, name, args, onLine)
	}
}
