package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"summify/internal/prompts"
)

func newPromptsCommand(ctx *commandContext) *cobra.Command {
	promptsCmd := &cobra.Command{
		Use:     "prompts",
		Aliases: []string{"prompt"},
		Short:   "Manage summary prompts",
	}

	library := func() (*prompts.Library, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		return prompts.NewLibrary(cfg.Paths.PromptsDir), nil
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the prompts the summarize step runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library()
			if err != nil {
				return err
			}
			list, err := lib.List()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No prompts in %s\n", lib.Dir())
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{p.File, p.Name, p.Output, yesNo(p.Chunked)})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Name", "Output", "Chunked"}, rows, nil))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	showCmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library()
			if err != nil {
				return err
			}
			p, err := lib.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Text)
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <file> <source>",
		Short: "Save the contents of source as a prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read prompt source: %w", err)
			}
			p, err := lib.Save(args[0], string(data))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved prompt %s\n", p.File)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <file>",
		Aliases: []string{"rm"},
		Short:   "Delete a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library()
			if err != nil {
				return err
			}
			if err := lib.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %s\n", args[0])
			return nil
		},
	}

	promptsCmd.AddCommand(listCmd, showCmd, addCmd, deleteCmd)
	return promptsCmd
}
