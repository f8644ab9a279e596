package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/config"
	"summify/internal/daemonrun"
	"summify/internal/logging"
	"summify/internal/pipeline"
	"summify/internal/services"
	"summify/internal/services/transcriber"
	"summify/internal/workflow"
)

type runOptions struct {
	steps     string
	modelType string
	modelSize string
	local     bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <path|file-id>",
		Short: "Run pipeline steps on a file and wait for the result",
		Long: "Run pipeline steps on a file and wait for the result.\n\n" +
			"Steps are digits in ascending order: 1 extract audio, 2 transcribe, 3 fix, 4 summarize.\n" +
			"A path is uploaded first; anything else is treated as the id of an uploaded file.\n" +
			"Jobs go to the running daemon when one answers, otherwise they run in this process.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := pipeline.ParseSteps(opts.steps); err != nil {
				return err
			}
			if !opts.local {
				client, ok, err := ctx.daemonClient(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					return runRemote(cmd.Context(), ctx, client, args[0], opts, cmd.OutOrStdout())
				}
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runLocal(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.steps, "steps", "s", "1234", "Steps to run")
	cmd.Flags().StringVar(&opts.modelType, "model-type", "", "Transcription engine (whisper, whisperx, paraformer)")
	cmd.Flags().StringVar(&opts.modelSize, "model-size", "", "Engine-specific model name")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Run in this process even when a daemon is available")
	return cmd
}

func isLocalFile(ref string) (string, bool) {
	path, err := config.ExpandPath(ref)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func runRemote(ctx context.Context, c *commandContext, client *api.Client, ref string, opts runOptions, out io.Writer) error {
	start, err := client.Events(ctx, 0, false)
	if err != nil {
		return err
	}

	var jobID string
	if path, ok := isLocalFile(ref); ok {
		resp, err := client.Upload(ctx, path, api.UploadOptions{
			AutoStart: true,
			Steps:     opts.steps,
			ModelType: opts.modelType,
			ModelSize: opts.modelSize,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s (%s)\n", resp.File.Name, resp.File.ID)
		jobID = resp.JobID
	} else {
		fileID, err := resolveFileID(ctx, c, ref)
		if err != nil {
			return err
		}
		jobID, err = client.Submit(ctx, api.JobRequest{
			FileID:    fileID,
			Steps:     opts.steps,
			ModelType: opts.modelType,
			ModelSize: opts.modelSize,
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Queued job %s\n", jobID)
	return followJob(ctx, client, jobID, start.Next, out)
}

// followJob prints the job's events until it completes or fails.
func followJob(ctx context.Context, client *api.Client, jobID string, since uint64, out io.Writer) error {
	for {
		page, err := client.Events(ctx, since, true)
		if err != nil {
			return err
		}
		for _, evt := range page.Events {
			if evt.JobID != jobID {
				continue
			}
			switch evt.EventType {
			case "job_progress":
				fmt.Fprintf(out, "  %s\n", evt.Message)
			case "job_complete":
				fmt.Fprintln(out, "Job completed")
				return nil
			case "job_failed":
				return &services.Error{
					Code:    services.Code(evt.Fields[logging.FieldErrorCode]),
					Message: evt.Fields["error_message"],
					Details: evt.Fields["error_details"],
				}
			}
		}
		if page.Next > since {
			since = page.Next
		}
	}
}

func runLocal(ctx context.Context, cfg *config.Config, ref string, opts runOptions, out io.Writer) error {
	logOpts := logging.OptionsFromConfig(cfg)
	logOpts.OutputPaths = []string{daemonrun.LogPath(cfg)}
	logOpts.ErrorOutputPaths = []string{"stderr"}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	svc, err := daemonrun.Build(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer func() { _ = svc.Scheduler.Stop(context.Background()) }()

	fileID := strings.TrimSpace(ref)
	if path, ok := isLocalFile(ref); ok {
		rec, err := importLocal(ctx, cfg, path, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s (%s)\n", rec.DisplayName, rec.ID)
		fileID = rec.ID
	}

	steps, err := pipeline.ParseSteps(opts.steps)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		failure *services.Details
		outputs []string
	)
	unsubscribe := svc.Scheduler.Subscribe(func(evt workflow.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch evt.Type {
		case workflow.EventProgress:
			fmt.Fprintf(out, "  %s\n", evt.Line)
		case workflow.EventComplete:
			outputs = evt.Outputs
		case workflow.EventFailed:
			failure = evt.Error
		}
	})
	defer unsubscribe()

	jobID, err := svc.Scheduler.Enqueue(ctx, pipeline.Job{
		FileID:  fileID,
		Steps:   steps,
		Options: transcriber.Options{ModelType: opts.modelType, ModelSize: opts.modelSize},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Running job %s\n", jobID)

	if err := svc.Scheduler.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("wait for job: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if failure != nil {
		return &services.Error{Code: failure.Code, Message: failure.Message, Details: failure.Details}
	}
	fmt.Fprintln(out, "Job completed")
	for _, path := range outputs {
		fmt.Fprintf(out, "  -> %s\n", path)
	}
	return nil
}
