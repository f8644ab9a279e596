package preflight

import (
	"context"

	"summify/internal/config"
	"summify/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local readiness checks for cfg. Network checks are
// left to CheckLLM so startup never blocks on a remote API.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckPrompts(cfg.Paths.PromptsDir),
		CheckAIKey(cfg.AI),
	}
	for _, status := range deps.MissingRequired(CheckSystemDeps(ctx, cfg)) {
		results = append(results, Result{Name: status.Name, Detail: status.Detail})
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
