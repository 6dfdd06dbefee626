package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
	"github.com/hyperjump/syntra/internal/models"
)

func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes in creation order",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().StringP("type", "t", "", "Only list nodes of this type")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	var filter models.NodeType
	if s, _ := cmd.Flags().GetString("type"); s != "" {
		if filter, err = models.ParseNodeType(s); err != nil {
			return err
		}
	}

	nodes, err := apiClient(cmd).ListNodes(cmd.Context())
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	if filter != "" {
		kept := nodes[:0]
		for _, n := range nodes {
			if n.Type == filter {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	return cli.WriteNodeList(cmd.OutOrStdout(), nodes, format)
}
