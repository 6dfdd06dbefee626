package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/syntra/internal/cli"
	"github.com/hyperjump/syntra/internal/client"
	"github.com/hyperjump/syntra/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "syntra",
		Short: "Personal knowledge operating system",
		Long: `Syntra stores books, notes, articles, quotes and ideas, embeds them, and links
every pair whose similarity exceeds 0.75. Run "syntra server" first; the other
commands talk to it over HTTP.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	addSubcommands(rootCmd, version)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("server", client.DefaultURL, "Server URL")
	cmd.PersistentFlags().String("config", config.DefaultPath, "Config file path")
	cmd.PersistentFlags().StringP("output", "o", string(cli.OutputText), "Output format (text|json)")
}

func addSubcommands(root *cobra.Command, version string) {
	root.AddCommand(
		NewServerCmd(version),
		NewAddCmd(),
		NewShowCmd(),
		NewListCmd(),
		NewDeleteCmd(),
		NewSearchCmd(),
		NewGraphCmd(),
		NewStatusCmd(),
		NewWatchCmd(),
		NewVersionCmd(version),
	)
}

// apiClient builds a client for the --server flag.
func apiClient(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("server")
	if strings.TrimSpace(url) == "" {
		url = client.DefaultURL
	}
	return client.New(url)
}

func outputFormat(cmd *cobra.Command) (cli.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseFormat(s)
}
