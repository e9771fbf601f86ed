package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitelore-ai/sitelore/internal/api"
	"github.com/sitelore-ai/sitelore/internal/api/handlers"
	"github.com/sitelore-ai/sitelore/internal/api/middleware"
)

type RouterConfig struct {
	ScrapeHandler  *handlers.ScrapeHandler
	ChatHandler    *handlers.ChatHandler
	SessionHandler *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/scrape", func(r chi.Router) {
		r.Post("/", cfg.ScrapeHandler.Start)
		r.Get("/status", cfg.ScrapeHandler.Status)
	})

	r.Get("/sources", cfg.ScrapeHandler.ListSources)

	r.Post("/chat", cfg.ChatHandler.Ask)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", cfg.SessionHandler.List)
		r.Get("/{id}", cfg.SessionHandler.Get)
		r.Delete("/{id}", cfg.SessionHandler.Delete)
	})

	return r
}
