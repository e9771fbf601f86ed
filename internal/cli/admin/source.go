package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitelore-ai/sitelore/internal/config"
	"github.com/sitelore-ai/sitelore/internal/database"
	"github.com/sitelore-ai/sitelore/internal/repository"
)

func SourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Inspect crawled sources",
		Long:  "List sources and their crawl state directly from the database",
	}

	cmd.AddCommand(SourceListCmd())

	return cmd
}

func SourceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all sources",
		Long:  "List every source with its crawl status and page counts",
		RunE:  runSourceList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSourceList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	sourceRepo := repository.NewSourceRepository(pool)
	sources, err := sourceRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "json" {
		data, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(sources) == 0 {
		fmt.Println("No sources found.")
		return nil
	}

	for _, s := range sources {
		fmt.Printf("%s\n", s.URL)
		fmt.Printf("  status: %s, pages: %d/%d\n", s.Status, s.PagesIndexed, s.TotalPagesEstimate)
		if s.Message != "" {
			fmt.Printf("  %s\n", s.Message)
		}
	}

	return nil
}
