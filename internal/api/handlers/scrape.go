package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sitelore-ai/sitelore/internal/api"
	"github.com/sitelore-ai/sitelore/internal/domain"
)

type CrawlManager interface {
	Start(ctx context.Context, rawURL string) (string, error)
	Status(ctx context.Context, rawURL string) (*domain.CrawlSnapshot, error)
	ListSources(ctx context.Context) ([]*domain.Source, error)
}

type ScrapeHandler struct {
	mgr CrawlManager
}

func NewScrapeHandler(mgr CrawlManager) *ScrapeHandler {
	return &ScrapeHandler{mgr: mgr}
}

type StartScrapeRequest struct {
	URL string `json:"url"`
}

type StartScrapeResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type ScrapeStatusResponse struct {
	URL                string `json:"url"`
	Status             string `json:"status"`
	PagesIndexed       int    `json:"pages_indexed"`
	TotalPagesEstimate int    `json:"total_pages_estimate"`
	Message            string `json:"message,omitempty"`
}

type SourceResponse struct {
	URL          string `json:"url"`
	Status       string `json:"status"`
	PagesIndexed int    `json:"pages_indexed"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func sourceToResponse(s *domain.Source) *SourceResponse {
	return &SourceResponse{
		URL:          s.URL,
		Status:       string(s.Status),
		PagesIndexed: s.PagesIndexed,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *ScrapeHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	normalized, err := h.mgr.Start(r.Context(), req.URL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, StartScrapeResponse{
		URL:    normalized,
		Status: string(domain.CrawlStatusQueued),
	})
}

func (h *ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		api.Error(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	snapshot, err := h.mgr.Status(r.Context(), rawURL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ScrapeStatusResponse{
		URL:                snapshot.URL,
		Status:             string(snapshot.Status),
		PagesIndexed:       snapshot.PagesIndexed,
		TotalPagesEstimate: snapshot.TotalPagesEstimate,
		Message:            snapshot.Message,
	})
}

type SourceListResponse struct {
	Items []*SourceResponse `json:"items"`
}

func (h *ScrapeHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.mgr.ListSources(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SourceResponse, len(sources))
	for i, s := range sources {
		responses[i] = sourceToResponse(s)
	}

	api.Success(w, http.StatusOK, SourceListResponse{Items: responses})
}
