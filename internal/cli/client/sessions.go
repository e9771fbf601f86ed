package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SessionSummary represents one entry of the sessions API response.
type SessionSummary struct {
	ID        string   `json:"id"`
	Preview   string   `json:"preview"`
	Sources   []string `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

// SessionList represents the sessions API response.
type SessionList struct {
	Items []SessionSummary `json:"items"`
}

// SessionMessage represents one message of a session transcript.
type SessionMessage struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// Session represents the session API response.
type Session struct {
	ID        string           `json:"id"`
	Sources   []string         `json:"sources"`
	Messages  []SessionMessage `json:"messages"`
	CreatedAt string           `json:"created_at"`
}

// SessionsCmd creates the sessions command.
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsDeleteCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSessionsList(cmd, outputJSON)
		},
	}
}

func runSessionsList(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/sessions")
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var list SessionList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return fmt.Errorf("failed to parse sessions response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(list.Items) == 0 {
		fmt.Println("No chat sessions.")
		return nil
	}

	for _, s := range list.Items {
		fmt.Printf("%s  %s\n", s.ID, s.Preview)
		fmt.Printf("  sources: %s\n", strings.Join(s.Sources, ", "))
	}

	return nil
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSessionsShow(cmd, args[0], outputJSON)
		},
	}
}

func runSessionsShow(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/sessions/" + id)
	if err != nil {
		return fmt.Errorf("failed to fetch session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(resp.Data, &session); err != nil {
		return fmt.Errorf("failed to parse session response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(session, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Session %s (sources: %s)\n\n", session.ID, strings.Join(session.Sources, ", "))
	for _, m := range session.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		if len(m.Sources) > 0 {
			fmt.Printf("  cites: %s\n", strings.Join(m.Sources, ", "))
		}
	}

	return nil
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, args[0])
		},
	}
}

func runSessionsDelete(cmd *cobra.Command, id string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete("/sessions/" + id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}
