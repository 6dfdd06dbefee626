package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
)

func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a node and its connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			detail, err := apiClient(cmd).GetNode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get node: %w", err)
			}
			return cli.WriteNode(cmd.OutOrStdout(), detail, format)
		},
	}
}
