package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			status, err := apiClient(cmd).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
}
