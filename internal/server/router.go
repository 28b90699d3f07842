package server

import (
	"net/http"

	"github.com/chatdocs-ai/chatdocs/internal/api"
	"github.com/chatdocs-ai/chatdocs/internal/api/handlers"
	"github.com/chatdocs-ai/chatdocs/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler      *handlers.DocumentHandler
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	RetrievalHandler     *handlers.RetrievalHandler
	MaxBodyBytes         int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 25 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.UserContext)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/download", cfg.DocumentHandler.GetDownloadURL)
		})

		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeBaseHandler.Create)
			r.Get("/", cfg.KnowledgeBaseHandler.List)
			r.Get("/{id}", cfg.KnowledgeBaseHandler.Get)
			r.Put("/{id}", cfg.KnowledgeBaseHandler.Update)
			r.Delete("/{id}", cfg.KnowledgeBaseHandler.Delete)
		})

		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
		r.Post("/ask", cfg.RetrievalHandler.Ask)
	})

	return r
}
