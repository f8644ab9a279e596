package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/daemonctl"
	"summify/internal/daemonrun"
	"summify/internal/deps"
	"summify/internal/language"
	"summify/internal/preflight"
)

type statusReport struct {
	Daemon       *api.DaemonStatus           `json:"daemon,omitempty"`
	APIAddress   string                      `json:"apiAddress"`
	Checks       []preflight.Result          `json:"checks"`
	Dependencies []deps.Status               `json:"dependencies"`
	DepsSummary  daemonctl.DependencySummary `json:"dependencySummary"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkAI bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{APIAddress: ctx.apiAddress()}

			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				reqCtx, cancel := api.WithTimeout(cmd.Context())
				status, err := client.Status(reqCtx)
				cancel()
				if err != nil {
					return err
				}
				report.Daemon = &status
			}

			report.Checks = preflight.RunAll(cmd.Context(), cfg)
			if checkAI {
				report.Checks = append(report.Checks, preflight.CheckLLM(cmd.Context(), cfg.AI))
			}
			report.Dependencies = preflight.CheckSystemDeps(cmd.Context(), cfg)
			report.DepsSummary = daemonctl.BuildDependencySummary(report.Dependencies)

			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Daemon", colorize)
			if report.Daemon == nil {
				detail := "not running"
				if pid := daemonrun.ReadPIDFile(cfg); pid > 0 {
					detail = fmt.Sprintf("not answering on %s (pid file names %d)", report.APIAddress, pid)
				}
				lines = append(lines, renderStatusLine("Daemon", statusWarn, detail, colorize))
			} else {
				d := report.Daemon
				lines = append(lines,
					renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d) on %s", d.PID, report.APIAddress), colorize),
					renderStatusLine("Files", statusInfo, fmt.Sprintf("%d", d.Files), colorize),
					renderStatusLine("Queue", statusInfo, queueSummary(d.Queue), colorize),
				)
			}

			tr := cfg.Transcription
			lines = append(lines, renderStatusLine("Transcription", statusInfo,
				fmt.Sprintf("%s %s, %s, language %s", tr.ModelType, tr.ModelSize, tr.Device, language.DisplayName(tr.Language)), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			for _, check := range report.Checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(report.Dependencies, colorize)...)
			lines = append(lines, renderStatusLine("Summary", severityKind(report.DepsSummary.Severity), report.DepsSummary.Detail, colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkAI, "check-ai", false, "Send a test request to the AI backend")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func queueSummary(q api.QueueStatus) string {
	if q.Active == nil {
		if len(q.Queued) == 0 {
			return "idle"
		}
		return fmt.Sprintf("%d queued", len(q.Queued))
	}
	return fmt.Sprintf("running %s (steps %s), %d queued", shortID(q.Active.FileID), q.Active.Steps, len(q.Queued))
}

func severityKind(severity string) statusKind {
	switch severity {
	case "ok":
		return statusOK
	case "warn":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		switch {
		case status.Available:
			detail := status.Path
			if status.Version != "" {
				detail = status.Version + " (" + status.Path + ")"
			}
			lines = append(lines, renderStatusLine(status.Name, statusOK, detail, colorize))
		case status.Optional:
			lines = append(lines, renderStatusLine(status.Name, statusWarn, status.Detail, colorize))
		default:
			detail := status.Detail
			if status.Description != "" {
				detail += " (" + status.Description + ")"
			}
			lines = append(lines, renderStatusLine(status.Name, statusError, detail, colorize))
		}
	}
	return lines
}
