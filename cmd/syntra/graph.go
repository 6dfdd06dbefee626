package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
)

func NewGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print every node and connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			view, err := apiClient(cmd).Graph(cmd.Context())
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}
			return cli.WriteGraph(cmd.OutOrStdout(), view, format)
		},
	}
}
