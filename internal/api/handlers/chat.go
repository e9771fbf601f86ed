package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sitelore-ai/sitelore/internal/api"
	"github.com/sitelore-ai/sitelore/internal/service"
)

type ChatService interface {
	Ask(ctx context.Context, sessionID, question string, sourceURLs []string) (*service.AskResult, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	SessionID string   `json:"session_id"`
	Question  string   `json:"question"`
	Sources   []string `json:"sources"`
}

type ChatResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.svc.Ask(r.Context(), req.SessionID, req.Question, req.Sources)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	citations := result.Citations
	if citations == nil {
		citations = []string{}
	}

	api.Success(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Sources:   citations,
	})
}
