package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the server's import directories",
		Long: `Files under a watched directory are imported as nodes. Edits replace the node
and deleting the file deletes it.`,
	}
	cmd.AddCommand(newWatchAddCmd(), newWatchRemoveCmd(), newWatchListCmd())
	return cmd
}

func newWatchAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Start importing a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			noSync, _ := cmd.Flags().GetBool("no-sync")
			if err := apiClient(cmd).AddWatchDirectory(cmd.Context(), path, !noSync); err != nil {
				return fmt.Errorf("watch add: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("no-sync", false, "Do not import files already in the directory")
	return cmd
}

func newWatchRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop importing a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := apiClient(cmd).RemoveWatchDirectory(cmd.Context(), path); err != nil {
				return fmt.Errorf("watch remove: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
			return nil
		},
	}
}

func newWatchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List import directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			dirs, err := apiClient(cmd).WatchDirectories(cmd.Context())
			if err != nil {
				return fmt.Errorf("watch list: %w", err)
			}
			if format == cli.OutputJSON {
				if dirs == nil {
					dirs = []string{}
				}
				return cli.WriteJSON(cmd.OutOrStdout(), map[string][]string{"directories": dirs})
			}
			for _, d := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}
