package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/daemonrun"
	"summify/internal/logging"
	"summify/internal/logs"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64
	var jobFilter string
	var lines int

	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"logs"},
		Short:   "Print daemon log and job events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				return tailLogFile(cmd.Context(), ctx, out, lines, follow, jobFilter)
			}
			for {
				page, err := client.Events(cmd.Context(), since, follow)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, evt := range page.Events {
					if jobFilter != "" && !strings.HasPrefix(evt.JobID, jobFilter) {
						continue
					}
					printEvent(out, evt)
				}
				if page.Next > since {
					since = page.Next
				}
				if !follow {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().StringVar(&jobFilter, "job", "", "Only show events for this job id (prefix; full id when reading the log file)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Lines of the log file to show when the daemon is not running")
	return cmd
}

// tailLogFile prints the daemon log file directly, for when no daemon answers.
func tailLogFile(cmdCtx context.Context, ctx *commandContext, out io.Writer, lines int, follow bool, jobID string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	path := daemonrun.LogPath(cfg)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("daemon is not running and no log file exists at %s; start it with `summify serve`", path)
	}
	fmt.Fprintf(out, "daemon not running; reading %s\n", path)

	opts := logs.TailOptions{Offset: -1, Limit: lines, Match: logs.FieldFilter(logging.FieldJobID, jobID)}
	for {
		result, err := logs.Tail(cmdCtx, path, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		opts.Offset = result.Offset
		opts.Follow = true
		opts.Wait = 5 * time.Second
	}
}

func printEvent(out io.Writer, evt api.LogEvent) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s", evt.Timestamp.Local().Format("15:04:05"), evt.Level)
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if evt.JobID != "" {
		fmt.Fprintf(&b, " job=%s", shortID(evt.JobID))
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	fmt.Fprintln(out, b.String())
}
