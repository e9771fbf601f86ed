package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitelore-ai/sitelore/internal/config"
	"github.com/sitelore-ai/sitelore/internal/database"
	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/repository"
)

func GlossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Inspect source glossaries",
		Long:  "List the concepts extracted for a crawled source",
	}

	cmd.AddCommand(GlossaryListCmd())

	return cmd
}

func GlossaryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <source-url>",
		Short: "List glossary entries for a source",
		Args:  cobra.ExactArgs(1),
		RunE:  runGlossaryList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runGlossaryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sourceURL, err := domain.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid source url: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	glossaryRepo := repository.NewGlossaryRepository(pool)
	entries, err := glossaryRepo.ListBySource(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("failed to list glossary entries: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "json" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No glossary entries found.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s: %s\n", e.Display, e.Definition)
		if len(e.Related) > 0 {
			fmt.Printf("  related: %s\n", strings.Join(e.Related, ", "))
		}
	}

	return nil
}
