package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove chunk debug files of deleted or old records from work_dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = time.Duration(cfg.Workflow.WorkRetentionHours) * time.Hour
			}

			store, err := openLocalRecords(cfg)
			if err != nil {
				return err
			}
			doc, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			live := make(map[string]struct{}, len(doc.Records))
			for _, rec := range doc.Records {
				live[rec.ID] = struct{}{}
			}

			protect := map[string]struct{}{}
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
				if status.Queue.Active != nil {
					protect[status.Queue.Active.FileID] = struct{}{}
				}
				for _, job := range status.Queue.Queued {
					protect[job.FileID] = struct{}{}
				}
			}

			result := staging.Clean(cmd.Context(), cfg.Paths.WorkDir, staging.Policy{
				MaxAge:  olderThan,
				Live:    live,
				Protect: protect,
				DryRun:  dryRun,
			}, nil)

			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "%s %s\n", verb, path)
			}
			for _, failure := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", failure.Path, failure.Error)
			}
			fmt.Fprintf(out, "%s %d director%s (%s)\n", verb, len(result.Removed), plural(len(result.Removed), "y", "ies"), humanize.Bytes(uint64(result.FreedBytes)))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d work directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove directories untouched for this long (defaults to workflow.work_retention_hours)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
