package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
	"github.com/hyperjump/syntra/internal/models"
)

func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title> [content]",
		Short: "Add a knowledge node",
		Long: `Add a node and print the connections discovered for it. Content comes from the
second argument, --file, or stdin, in that order.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runAdd,
	}

	cmd.Flags().StringP("type", "t", string(models.NodeTypeNote), "Node type (book|note|article|quote|idea)")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().String("source", "", "Where the content came from")
	cmd.Flags().StringP("file", "f", "", "Read content from a file")
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	typeName, _ := cmd.Flags().GetString("type")
	nodeType, err := models.ParseNodeType(typeName)
	if err != nil {
		return err
	}
	tags, _ := cmd.Flags().GetStringSlice("tags")
	source, _ := cmd.Flags().GetString("source")
	file, _ := cmd.Flags().GetString("file")

	content, err := resolveAddContent(cmd.InOrStdin(), args, file)
	if err != nil {
		return err
	}
	if source == "" && file != "" {
		if abs, absErr := filepath.Abs(file); absErr == nil {
			source = abs
		}
	}

	result, err := apiClient(cmd).CreateNode(cmd.Context(), models.NodeInput{
		Type:    nodeType,
		Title:   args[0],
		Content: content,
		Source:  source,
		Tags:    tags,
	})
	if err != nil {
		return fmt.Errorf("add node: %w", err)
	}
	return cli.WriteNode(cmd.OutOrStdout(), result, format)
}

func resolveAddContent(stdin io.Reader, args []string, file string) (string, error) {
	if len(args) >= 2 {
		return args[1], nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
