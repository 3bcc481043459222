package api

import (
	"github.com/go-chi/chi/v5"

	"jira_code_agent/internal/core"
	"jira_code_agent/pkg"
)

// NewRouter creates the Chi router with all routes and middleware.
// defaults fill any generation option a start request leaves out.
func NewRouter(engine *core.Engine, defaults pkg.GenerationOptions, apiToken string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recovery)

	sessionH := NewSessionHandler(engine, defaults)

	r.Get("/health", sessionH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiToken))

		r.Route("/api/v1/sessions", func(r chi.Router) {
			r.Get("/", sessionH.List)
			r.Post("/", sessionH.Start)
			r.Post("/cleanup", sessionH.Cleanup)
			r.Get("/{id}", sessionH.Get)
			r.Delete("/{id}", sessionH.Delete)
			r.Post("/{id}/approval", sessionH.Approval)
			r.Post("/{id}/tests", sessionH.RunTests)
		})
	})

	return r
}
