package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	SessionID string   `json:"session_id,omitempty"`
	Question  string   `json:"question"`
	Sources   []string `json:"sources,omitempty"`
}

// ChatAnswer represents the chat API response.
type ChatAnswer struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		sessionID string
		sources   []string
	)

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question about indexed sites",
		Long: `Asks a question grounded in the indexed content of the selected sources.

Starting a conversation requires at least one --source; follow-ups reuse
the session's sources via --session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChat(cmd, args[0], sessionID, sources, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Continue an existing chat session")
	cmd.Flags().StringArrayVar(&sources, "source", nil, "Source URL to answer from (repeatable)")

	return cmd
}

func runChat(cmd *cobra.Command, question, sessionID string, sources []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/chat", ChatRequest{
		SessionID: sessionID,
		Question:  question,
		Sources:   sources,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var answer ChatAnswer
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range answer.Sources {
			fmt.Printf("  %s\n", s)
		}
	}
	fmt.Printf("\nSession: %s\n", answer.SessionID)

	return nil
}
