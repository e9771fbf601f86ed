package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context) ([]*domain.SessionSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SessionSummary), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages []domain.Message) error {
	args := m.Called(ctx, sessionID, messages)
	return args.Error(0)
}

// MockContextBuilder is a mock implementation of ContextBuilder
type MockContextBuilder struct {
	mock.Mock
}

func (m *MockContextBuilder) BuildContext(ctx context.Context, question string, sourceURLs []string, history []domain.Message) (*PromptContext, error) {
	args := m.Called(ctx, question, sourceURLs, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PromptContext), args.Error(1)
}

// MockCompleter is a mock implementation of Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func chatFixtures() (*MockSessionRepository, *MockContextBuilder, *MockCompleter, *ChatService) {
	sessions := new(MockSessionRepository)
	builder := new(MockContextBuilder)
	completer := new(MockCompleter)
	return sessions, builder, completer, NewChatService(sessions, builder, completer)
}

func TestChatService_Ask_NewSession(t *testing.T) {
	sessions, builder, completer, svc := chatFixtures()

	pc := &PromptContext{
		Chunks: []*domain.ScoredChunk{
			scoredChunk("https://docs.example.com/sla", "Uptime is 99.9 percent.", 0.82),
		},
		Prompt: "Question: what is the uptime?",
	}
	builder.On("BuildContext", mock.Anything, "what is the uptime?", []string{"https://docs.example.com"}, mock.Anything).
		Return(pc, nil)
	sessions.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.ChatSession) bool {
		return s.ID != "" && len(s.Sources) == 1
	})).Return(nil)
	completer.On("Complete", mock.Anything, mock.Anything, pc.Prompt).
		Return("Uptime is 99.9 percent, see https://docs.example.com/sla for details.", nil)
	sessions.On("AppendMessages", mock.Anything, mock.Anything, mock.MatchedBy(func(msgs []domain.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == domain.MessageRoleUser &&
			msgs[1].Role == domain.MessageRoleAssistant
	})).Return(nil)

	res, err := svc.Ask(context.Background(), "", "what is the uptime?", []string{"https://docs.example.com"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.Answer, "99.9")
	assert.Equal(t, []string{"https://docs.example.com/sla"}, res.Citations)
	sessions.AssertExpectations(t)
}

func TestChatService_Ask_ExistingSessionUsesStoredSources(t *testing.T) {
	sessions, builder, completer, svc := chatFixtures()

	existing := domain.NewChatSession("sess-1", []string{"https://docs.example.com"}, time.Now())
	existing.Messages = []domain.Message{
		{Role: domain.MessageRoleUser, Content: "earlier question"},
		{Role: domain.MessageRoleAssistant, Content: "earlier answer"},
	}
	sessions.On("GetByID", mock.Anything, "sess-1").Return(existing, nil)
	builder.On("BuildContext", mock.Anything, "follow up", []string{"https://docs.example.com"}, existing.Messages).
		Return(&PromptContext{Prompt: "Question: follow up"}, nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("an answer", nil)
	sessions.On("AppendMessages", mock.Anything, "sess-1", mock.Anything).Return(nil)

	res, err := svc.Ask(context.Background(), "sess-1", "follow up", []string{"https://ignored.example.net"})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", res.SessionID)
	sessions.AssertNotCalled(t, "Create")
	builder.AssertExpectations(t)
}

func TestChatService_Ask_EmptyQuestion(t *testing.T) {
	_, _, _, svc := chatFixtures()

	_, err := svc.Ask(context.Background(), "", "  ", []string{"https://docs.example.com"})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestChatService_Ask_NewSessionWithoutSources(t *testing.T) {
	sessions, _, _, svc := chatFixtures()

	_, err := svc.Ask(context.Background(), "", "a question", nil)
	assert.ErrorIs(t, err, domain.ErrNoSourcesSelected)
	sessions.AssertNotCalled(t, "Create")
}

func TestChatService_Ask_SessionNotFound(t *testing.T) {
	sessions, _, _, svc := chatFixtures()

	sessions.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSessionNotFound)

	_, err := svc.Ask(context.Background(), "missing", "a question", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestChatService_Ask_CompletionFailureAppendsErrorPair(t *testing.T) {
	sessions, builder, completer, svc := chatFixtures()

	existing := domain.NewChatSession("sess-1", []string{"https://docs.example.com"}, time.Now())
	sessions.On("GetByID", mock.Anything, "sess-1").Return(existing, nil)
	builder.On("BuildContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&PromptContext{Prompt: "Question: a question"}, nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("completion failed after 3 attempts"))

	var appended []domain.Message
	sessions.On("AppendMessages", mock.Anything, "sess-1", mock.Anything).
		Run(func(args mock.Arguments) {
			appended = args.Get(2).([]domain.Message)
		}).
		Return(nil)

	_, err := svc.Ask(context.Background(), "sess-1", "a question", nil)
	require.ErrorIs(t, err, domain.ErrUpstreamFailure)

	// The user message is never left unanswered: its pair is an
	// error-role message, not a fabricated assistant answer.
	require.Len(t, appended, 2)
	assert.Equal(t, domain.MessageRoleUser, appended[0].Role)
	assert.Equal(t, domain.MessageRoleError, appended[1].Role)
	assert.Contains(t, appended[1].Content, "answer generation failed")
}

func TestChatService_Ask_ContextFailureLeavesSessionUntouched(t *testing.T) {
	sessions, builder, _, svc := chatFixtures()

	existing := domain.NewChatSession("sess-1", []string{"https://docs.example.com"}, time.Now())
	sessions.On("GetByID", mock.Anything, "sess-1").Return(existing, nil)
	builder.On("BuildContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("index offline"))

	_, err := svc.Ask(context.Background(), "sess-1", "a question", nil)
	assert.Error(t, err)
	sessions.AssertNotCalled(t, "AppendMessages")
}

func TestExtractCitations(t *testing.T) {
	chunks := []*domain.ScoredChunk{
		scoredChunk("https://a.com/page", "alpha", 0.9),
		scoredChunk("https://b.com/page", "beta", 0.8),
		scoredChunk("https://a.com/page", "alpha again", 0.7),
	}

	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "only mentioned chunk urls are cited",
			answer: "See https://a.com/page for details.",
			want:   []string{"https://a.com/page"},
		},
		{
			name:   "unknown urls are never cited",
			answer: "See https://c.com/page for details.",
			want:   nil,
		},
		{
			name:   "duplicates collapse in chunk order",
			answer: "Compare https://b.com/page with https://a.com/page.",
			want:   []string{"https://a.com/page", "https://b.com/page"},
		},
		{
			name:   "no urls in answer",
			answer: "The docs do not cover this.",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCitations(tt.answer, chunks))
		})
	}
}
