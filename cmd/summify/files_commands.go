package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"summify/internal/api"
	"summify/internal/config"
	"summify/internal/logging"
	"summify/internal/records"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file"},
		Short:   "Manage uploaded files",
	}
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesAddCommand(ctx))
	filesCmd.AddCommand(newFilesSyncCommand(ctx))
	filesCmd.AddCommand(newFilesRenameCommand(ctx))
	filesCmd.AddCommand(newFilesDeleteCommand(ctx))
	return filesCmd
}

func openLocalRecords(cfg *config.Config) (*records.Store, error) {
	return records.Open(cfg.Paths.RecordsPath, logging.NewNop())
}

// listFiles returns the live listing from the daemon, or from the record
// store directly when no daemon is running.
func listFiles(ctx context.Context, c *commandContext) ([]api.FileEntry, error) {
	client, ok, err := c.daemonClient(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		reqCtx, cancel := api.WithTimeout(ctx)
		defer cancel()
		return client.Files(reqCtx)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := openLocalRecords(cfg)
	if err != nil {
		return nil, err
	}
	views, err := store.List(ctx, cfg.Paths.UploadDir, cfg.Media.AllowedExtensions)
	if err != nil {
		return nil, err
	}
	return api.FromViews(views), nil
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List uploaded files and their step status",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := listFiles(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.FileListResponse{Files: files})
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files uploaded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Size", "Transcribed", "Fixed", "Summarized", "Added"},
				fileRows(files, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func fileRows(files []api.FileEntry, now time.Time) [][]string {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			shortID(file.ID),
			file.Name,
			humanize.Bytes(uint64(max(file.SizeBytes, 0))),
			yesNo(file.Transcribed),
			yesNo(file.Fixed),
			yesNo(file.Summarized),
			relativeTime(file.CreatedAt, now),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func relativeTime(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

// resolveFileID expands an unambiguous id prefix, as printed by "files list".
func resolveFileID(ctx context.Context, c *commandContext, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("file id is required")
	}
	files, err := listFiles(ctx, c)
	if err != nil {
		return "", err
	}
	var match string
	for _, file := range files {
		if file.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(file.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("file id prefix %q is ambiguous", ref)
			}
			match = file.ID
		}
	}
	if match == "" {
		return ref, nil
	}
	return match, nil
}

func newFilesAddCommand(ctx *commandContext) *cobra.Command {
	var opts api.UploadOptions
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Upload a media or transcript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				resp, err := client.Upload(cmd.Context(), path, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Added %s (%s)\n", resp.File.Name, resp.File.ID)
				if resp.JobID != "" {
					fmt.Fprintf(out, "Queued job %s\n", resp.JobID)
				}
				return nil
			}
			if opts.AutoStart {
				return errors.New("--start needs a running daemon; use `summify run` to process in the foreground")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rec, err := importLocal(cmd.Context(), cfg, path, opts.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added %s (%s)\n", rec.DisplayName, rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "Display name (defaults to the file name)")
	cmd.Flags().BoolVar(&opts.AutoStart, "start", false, "Queue a job once the upload completes")
	cmd.Flags().StringVar(&opts.Steps, "steps", "", "Steps for --start (digits 1-4, default 1234)")
	cmd.Flags().StringVar(&opts.ModelType, "model-type", "", "Transcription engine for --start")
	cmd.Flags().StringVar(&opts.ModelSize, "model-size", "", "Transcription model for --start")
	return cmd
}

func importLocal(ctx context.Context, cfg *config.Config, path, name string) (records.FileRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return records.FileRecord{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(path)
	}
	store, err := openLocalRecords(cfg)
	if err != nil {
		return records.FileRecord{}, err
	}
	return store.Import(ctx, file, name, cfg.Paths.UploadDir, cfg.Media.AllowedExtensions)
}

func newFilesSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Register files copied into the upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			var synced int
			if ok {
				synced, err = client.Sync(cmd.Context())
			} else {
				var cfg *config.Config
				if cfg, err = ctx.ensureConfig(); err != nil {
					return err
				}
				var store *records.Store
				if store, err = openLocalRecords(cfg); err != nil {
					return err
				}
				synced, err = store.SyncWithUpload(cmd.Context(), cfg.Paths.UploadDir, cfg.Media.AllowedExtensions)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d file(s)\n", synced)
			return nil
		},
	}
}

func newFilesRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Change a file's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveFileID(cmd.Context(), ctx, args[0])
			if err != nil {
				return err
			}
			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			var name string
			if ok {
				entry, err := client.RenameFile(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				name = entry.Name
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := openLocalRecords(cfg)
				if err != nil {
					return err
				}
				rec, err := store.Rename(cmd.Context(), records.ByID(id), args[1])
				if err != nil {
					return err
				}
				name = rec.DisplayName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", shortID(id), name)
			return nil
		},
	}
}

func newFilesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete files together with their outputs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ok, err := ctx.daemonClient(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var store *records.Store
			if !ok {
				if store, err = openLocalRecords(cfg); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, ref := range args {
				id, err := resolveFileID(cmd.Context(), ctx, ref)
				if err != nil {
					return err
				}
				if ok {
					err = client.DeleteFile(cmd.Context(), id)
				} else {
					err = store.Delete(cmd.Context(), records.ByID(id), cfg.Paths.UploadDir, cfg.Paths.OutputDir)
				}
				if err != nil {
					return fmt.Errorf("delete %s: %w", ref, err)
				}
				fmt.Fprintf(out, "Deleted %s\n", shortID(id))
			}
			return nil
		},
	}
}
