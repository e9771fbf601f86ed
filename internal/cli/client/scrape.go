package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// ScrapeRequest represents the scrape API request.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeStatus represents the scrape status API response.
type ScrapeStatus struct {
	URL                string `json:"url"`
	Status             string `json:"status"`
	PagesIndexed       int    `json:"pages_indexed"`
	TotalPagesEstimate int    `json:"total_pages_estimate"`
	Message            string `json:"message,omitempty"`
}

// ScrapeCmd creates the scrape command.
func ScrapeCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Crawl and index a website",
		Long:  "Starts a crawl of the given site and indexes every same-origin page.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runScrape(cmd, args[0], wait, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the crawl finishes")

	return cmd
}

func runScrape(cmd *cobra.Command, rawURL string, wait, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/scrape", ScrapeRequest{URL: rawURL})
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	var status ScrapeStatus
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse scrape response: %w", err)
	}

	if !wait {
		if outputJSON {
			output, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(output))
		} else {
			fmt.Printf("Crawl queued for %s\n", status.URL)
		}
		return nil
	}

	return pollStatus(api, status.URL, outputJSON)
}

func pollStatus(api *APIClient, sourceURL string, outputJSON bool) error {
	for {
		status, err := fetchStatus(api, sourceURL)
		if err != nil {
			return err
		}

		switch status.Status {
		case "queued", "running":
			if !outputJSON {
				fmt.Printf("%s: %d/%d pages\n", status.Status, status.PagesIndexed, status.TotalPagesEstimate)
			}
			time.Sleep(2 * time.Second)
		default:
			if outputJSON {
				output, _ := json.MarshalIndent(status, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("%s: %d pages indexed\n", status.Status, status.PagesIndexed)
				if status.Message != "" {
					fmt.Println(status.Message)
				}
			}
			return nil
		}
	}
}

func fetchStatus(api *APIClient, sourceURL string) (*ScrapeStatus, error) {
	resp, err := api.Get("/scrape/status?url=" + url.QueryEscape(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("status check failed: %w", err)
	}

	var status ScrapeStatus
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &status, nil
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <url>",
		Short: "Show crawl status for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStatus(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runStatus(cmd *cobra.Command, rawURL string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	status, err := fetchStatus(api, rawURL)
	if err != nil {
		return err
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("%s\n", status.URL)
		fmt.Printf("  status: %s, pages: %d/%d\n", status.Status, status.PagesIndexed, status.TotalPagesEstimate)
		if status.Message != "" {
			fmt.Printf("  %s\n", status.Message)
		}
	}

	return nil
}

// Source represents one entry of the sources API response.
type Source struct {
	URL          string `json:"url"`
	Status       string `json:"status"`
	PagesIndexed int    `json:"pages_indexed"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// SourceList represents the sources API response.
type SourceList struct {
	Items []Source `json:"items"`
}

// SourcesCmd creates the sources command.
func SourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSources(cmd, outputJSON)
		},
	}

	return cmd
}

func runSources(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/sources")
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	var list SourceList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return fmt.Errorf("failed to parse sources response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(list.Items) == 0 {
		fmt.Println("No sources indexed yet.")
		return nil
	}

	for _, s := range list.Items {
		fmt.Printf("%s  [%s]  %d pages\n", s.URL, s.Status, s.PagesIndexed)
	}

	return nil
}
