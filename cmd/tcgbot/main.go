package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/tcgbot/cmd/tcgbot/commands"
	"github.com/teranos/tcgbot/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tcgbot",
	Short: "tcgbot - Pokemon TCG posting and reply bot",
	Long: `tcgbot - Pokemon TCG posting and reply bot.

Runs posting and replying jobs against Bluesky (or a simulated account),
generates content through OpenRouter, and serves the dashboard API.

Available commands:
  server  - Start the HTTP API, websocket stream and MCP endpoint
  post    - Publish a single post through the configured account
  config  - Show or validate configuration
  version - Show version information

Examples:
  tcgbot server --port 8000           # Start the API
  tcgbot server --seed jobs.toml      # Start with jobs from a manifest
  tcgbot post "Pack opening tonight!" # One-off post
  tcgbot config show --format yaml    # Show effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if cmd.Name() == "server" && verbosity == 0 {
			verbosity = logger.VerbosityInfo
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.PostCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
