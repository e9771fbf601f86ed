package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitelore-ai/sitelore/internal/cli"
	"github.com/sitelore-ai/sitelore/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sitelore",
		Short: "Sitelore CLI - Crawl websites and chat with their content",
		Long: `Sitelore CLI crawls websites into a searchable index and answers
questions grounded in what it indexed.

Environment variables:
  SITELORE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ScrapeCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.SourcesCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.SessionsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
