package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/telemetry"
)

// systemPrompt instructs the completion model how to use the assembled
// context and how to cite pages.
const systemPrompt = `You are a helpful assistant answering questions about a website using only the provided context.
Ground every claim in the Knowledge Base Context or Semantic Concepts sections.
When a context passage supports your answer, cite its page by including the URL from its [Source: URL] tag verbatim.
If the context does not contain the answer, say so instead of guessing.`

// Completer produces an answer for an assembled prompt
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// SessionRepository persists chat sessions and their messages
type SessionRepository interface {
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	List(ctx context.Context) ([]*domain.SessionSummary, error)
	Delete(ctx context.Context, id string) error
	AppendMessages(ctx context.Context, sessionID string, messages []domain.Message) error
}

// AskResult is the outcome of one answered question
type AskResult struct {
	SessionID string
	Answer    string
	Citations []string
}

// ContextBuilder assembles the prompt for a question
type ContextBuilder interface {
	BuildContext(ctx context.Context, question string, sourceURLs []string, history []domain.Message) (*PromptContext, error)
}

// ChatService orchestrates a question end to end: session resolution,
// context assembly, completion, citation extraction, and persistence.
type ChatService struct {
	sessions  SessionRepository
	retrieval ContextBuilder
	completer Completer
}

// NewChatService creates a new ChatService
func NewChatService(sessions SessionRepository, retrieval ContextBuilder, completer Completer) *ChatService {
	return &ChatService{
		sessions:  sessions,
		retrieval: retrieval,
		completer: completer,
	}
}

// Ask answers a question. An empty sessionID starts a new session whose
// source selection is fixed from the request; a non-empty sessionID
// continues an existing session using the sources chosen at creation.
// Nothing is persisted until the outcome is known: success appends the
// user/assistant pair in one call, an upstream failure appends the user
// message paired with an error-role message so the transcript never
// carries an unanswered question.
func (s *ChatService) Ask(ctx context.Context, sessionID, question string, sourceURLs []string) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "ask",
	})
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	var session *domain.ChatSession
	created := false
	if sessionID == "" {
		if len(sourceURLs) == 0 {
			return nil, domain.ErrNoSourcesSelected
		}
		session = domain.NewChatSession(uuid.NewString(), sourceURLs, time.Now())
		created = true
	} else {
		var err error
		session, err = s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	pc, err := s.retrieval.BuildContext(ctx, question, session.Sources, session.Messages)
	if err != nil {
		return nil, err
	}

	if created {
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	now := time.Now()
	userMsg := domain.Message{Role: domain.MessageRoleUser, Content: question, CreatedAt: now}

	answer, err := s.completer.Complete(ctx, systemPrompt, pc.Prompt)
	if err != nil {
		span.SetError(err)
		errMsg := domain.Message{
			Role:      domain.MessageRoleError,
			Content:   fmt.Sprintf("answer generation failed: %v", err),
			CreatedAt: time.Now(),
		}
		if appendErr := s.sessions.AppendMessages(ctx, session.ID, []domain.Message{userMsg, errMsg}); appendErr != nil {
			return nil, fmt.Errorf("%w: %v (recording failure also failed: %v)", domain.ErrUpstreamFailure, err, appendErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}

	citations := ExtractCitations(answer, pc.Chunks)
	assistantMsg := domain.Message{
		Role:      domain.MessageRoleAssistant,
		Content:   answer,
		Sources:   citations,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.AppendMessages(ctx, session.ID, []domain.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("failed to persist exchange: %w", err)
	}

	return &AskResult{
		SessionID: session.ID,
		Answer:    answer,
		Citations: citations,
	}, nil
}

// GetSession returns one session with its full transcript
func (s *ChatService) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	return s.sessions.GetByID(ctx, id)
}

// ListSessions returns summaries of all sessions
func (s *ChatService) ListSessions(ctx context.Context) ([]*domain.SessionSummary, error) {
	return s.sessions.List(ctx)
}

// DeleteSession removes a session and its messages
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// ExtractCitations returns the page URLs that appear verbatim in the
// answer text and belong to the retrieved chunks. Order follows chunk
// order, never answer order, so citations are stable across phrasings.
func ExtractCitations(answer string, chunks []*domain.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var cited []string
	for _, c := range chunks {
		url := c.Chunk.PageURL
		if _, dup := seen[url]; dup {
			continue
		}
		if strings.Contains(answer, url) {
			seen[url] = struct{}{}
			cited = append(cited, url)
		}
	}
	return cited
}
