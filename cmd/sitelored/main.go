package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitelore-ai/sitelore/internal/cli"
	"github.com/sitelore-ai/sitelore/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sitelored",
		Short: "Sitelore daemon and admin CLI",
		Long:  "Sitelore daemon for running the API server and inspecting indexed sources",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.SourceCmd())
	rootCmd.AddCommand(admin.GlossaryCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
