package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitelore-ai/sitelore/internal/api"
	"github.com/sitelore-ai/sitelore/internal/domain"
)

type SessionService interface {
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context) ([]*domain.SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type MessageResponse struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	CreatedAt string   `json:"created_at"`
}

type SessionResponse struct {
	ID        string             `json:"id"`
	Sources   []string           `json:"sources"`
	Messages  []*MessageResponse `json:"messages"`
	CreatedAt string             `json:"created_at"`
}

type SessionSummaryResponse struct {
	ID        string   `json:"id"`
	Preview   string   `json:"preview"`
	Sources   []string `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

func sessionToResponse(s *domain.ChatSession) *SessionResponse {
	messages := make([]*MessageResponse, len(s.Messages))
	for i, m := range s.Messages {
		messages[i] = &MessageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			Sources:   m.Sources,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	return &SessionResponse{
		ID:        s.ID,
		Sources:   s.Sources,
		Messages:  messages,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	session, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sessionToResponse(session))
}

type SessionListResponse struct {
	Items []*SessionSummaryResponse `json:"items"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.ListSessions(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SessionSummaryResponse, len(summaries))
	for i, s := range summaries {
		responses[i] = &SessionSummaryResponse{
			ID:        s.ID,
			Preview:   s.Preview,
			Sources:   s.Sources,
			CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	api.Success(w, http.StatusOK, SessionListResponse{Items: responses})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteSession(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
