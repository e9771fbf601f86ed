package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/service"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, sessionID, question string, sourceURLs []string) (*service.AskResult, error) {
	args := m.Called(ctx, sessionID, question, sourceURLs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

func TestChatHandler_Ask_NewSession(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Ask", mock.Anything, "", "What is the billing cycle?", []string{"https://docs.example.com"}).
		Return(&service.AskResult{
			SessionID: "sess-1",
			Answer:    "Billing runs monthly. [Source: https://docs.example.com/pricing]",
			Citations: []string{"https://docs.example.com/pricing"},
		}, nil)

	body := `{"question":"What is the billing cycle?","sources":["https://docs.example.com"]}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "sess-1", envelope.Data.SessionID)
	assert.Contains(t, envelope.Data.Answer, "Billing runs monthly")
	assert.Equal(t, []string{"https://docs.example.com/pricing"}, envelope.Data.Sources)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Ask_ExistingSession(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Ask", mock.Anything, "sess-1", "And yearly?", []string(nil)).
		Return(&service.AskResult{
			SessionID: "sess-1",
			Answer:    "Yearly plans get a discount.",
			Citations: nil,
		}, nil)

	body := `{"session_id":"sess-1","question":"And yearly?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []string{}, envelope.Data.Sources)
}

func TestChatHandler_Ask_EmptyQuestion(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	body := `{"question":"","sources":["https://docs.example.com"]}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_Ask_NoSources(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Ask", mock.Anything, "", "hello", []string(nil)).
		Return(nil, domain.ErrNoSourcesSelected)

	body := `{"question":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Ask_UpstreamFailure(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Ask", mock.Anything, "", "hello", []string{"https://docs.example.com"}).
		Return(nil, fmt.Errorf("%w: completion request failed", domain.ErrUpstreamFailure))

	body := `{"question":"hello","sources":["https://docs.example.com"]}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChatHandler_Ask_InvalidBody(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(`{`)))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
