package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MessageRole represents who produced a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleError marks a failure surfaced to the user in place of a
	// fabricated assistant answer.
	MessageRoleError MessageRole = "error"
)

// Message represents one entry in a chat session
type Message struct {
	Role      MessageRole
	Content   string
	Sources   []string
	CreatedAt time.Time
}

// ChatSession represents a conversation against a fixed set of sources
type ChatSession struct {
	ID        string
	Sources   []string
	Messages  []Message
	CreatedAt time.Time
}

// SessionSummary is the listing view of a session
type SessionSummary struct {
	ID        string
	Preview   string
	Sources   []string
	CreatedAt time.Time
}

// NewChatSession creates a session with its source set fixed at creation
func NewChatSession(id string, sources []string, now time.Time) *ChatSession {
	return &ChatSession{
		ID:        id,
		Sources:   append([]string(nil), sources...),
		Messages:  nil,
		CreatedAt: now,
	}
}

// ValidateChatSession validates a ChatSession instance
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("chat session cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("chat session ID is required")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("chat session Sources is required")
	}
	for _, m := range s.Messages {
		if err := ValidateMessage(&m); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}
	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}
	return nil
}

func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleError:
		return true
	}
	return false
}

// Preview returns the first user message truncated for session listings
func (s *ChatSession) Preview(maxChars int) string {
	for _, m := range s.Messages {
		if m.Role != MessageRoleUser {
			continue
		}
		if maxChars > 0 {
			return TruncateEllipsis(m.Content, maxChars)
		}
		return m.Content
	}
	return ""
}

// TruncateEllipsis caps s at max bytes, cutting on a rune boundary and
// appending an ellipsis when something was dropped.
func TruncateEllipsis(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
