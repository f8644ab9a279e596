package services

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool to completion. The pipeline
// supplies a runner that streams output to progress listeners; tests supply
// fakes.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// RunCombined runs the command and folds its combined output into the error
// on failure.
func RunCombined(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
