package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
	"github.com/hyperjump/syntra/internal/models"
)

func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search nodes by meaning",
		Long: `Rank every node by similarity to the query. Multi-word queries work with or
without quotes. Use --keyword for full-text search instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntP("limit", "n", models.DefaultSearchLimit, "Maximum number of results")
	cmd.Flags().BoolP("keyword", "k", false, "Keyword search instead of semantic search")
	cmd.Flags().Bool("fuzzy", false, "Tolerate typos (keyword search only)")
	cmd.Flags().StringP("type", "t", "", "Restrict keyword search to a node type")
	return cmd
}

// buildSearchQuery joins positional args so quoting is optional.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	query := buildSearchQuery(args)
	if query == "" {
		return errors.New("query cannot be empty")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	keyword, _ := cmd.Flags().GetBool("keyword")
	fuzzy, _ := cmd.Flags().GetBool("fuzzy")
	typeName, _ := cmd.Flags().GetString("type")

	q := models.SearchQuery{Query: query, Limit: limit}
	c := apiClient(cmd)

	if !keyword {
		if fuzzy || typeName != "" {
			return errors.New("--fuzzy and --type require --keyword")
		}
		resp, err := c.Search(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
	}

	if typeName != "" {
		if q.Type, err = models.ParseNodeType(typeName); err != nil {
			return err
		}
	}
	q.Fuzzy = fuzzy
	resp, err := c.KeywordSearch(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("keyword search: %w", err)
	}
	return cli.WriteKeywordResults(cmd.OutOrStdout(), resp, format)
}
