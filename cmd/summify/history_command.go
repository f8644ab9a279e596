package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var fileRef string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := ""
			if strings.TrimSpace(fileRef) != "" {
				resolved, err := resolveFileID(cmd.Context(), ctx, fileRef)
				if err != nil {
					return err
				}
				fileID = resolved
			}
			jobs, err := listHistory(cmd.Context(), ctx, fileID, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.HistoryResponse{Jobs: jobs})
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Job", "File", "Steps", "Status", "Duration", "Started", "Detail"},
				historyRows(jobs, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&fileRef, "file", "", "Only show jobs for this file id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryPruneCommand(ctx))
	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func listHistory(ctx context.Context, c *commandContext, fileID string, limit int) ([]api.HistoryEntry, error) {
	client, ok, err := c.daemonClient(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		reqCtx, cancel := api.WithTimeout(ctx)
		defer cancel()
		return client.History(reqCtx, fileID, limit)
	}
	store, err := openLocalHistory(c)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	jobs, err := store.List(ctx, history.ListOptions{FileID: fileID, Limit: limit})
	if err != nil {
		return nil, err
	}
	entries := make([]api.HistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, api.FromHistoryJob(job))
	}
	return entries, nil
}

func openLocalHistory(c *commandContext) (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.Paths.HistoryPath)
}

func historyRows(jobs []api.HistoryEntry, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		duration := "-"
		if job.DurationSeconds > 0 {
			duration = (time.Duration(job.DurationSeconds * float64(time.Second))).Round(time.Second).String()
		}
		started := job.StartedAt
		if started == "" {
			started = job.CreatedAt
		}
		detail := job.Progress
		if job.Error != nil {
			detail = fmt.Sprintf("[%s] %s", job.Error.Code, job.Error.Message)
		}
		rows = append(rows, []string{
			shortID(job.JobID),
			job.Name,
			job.Steps,
			job.Status,
			duration,
			relativeTime(started, now),
			detail,
		})
	}
	return rows
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := openLocalHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff (e.g. 720h)")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every job record",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
}
