package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a node and its connections",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := apiClient(cmd).DeleteNode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete node: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d connections removed)\n", args[0], removed)
			return nil
		},
	}
}
