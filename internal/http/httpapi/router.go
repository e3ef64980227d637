package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"spriteforge/internal/http/handlers"
)

// NewRouter wires the API routes. staticDir, when non-empty, serves the
// filesystem blob store under /static for development setups.
func NewRouter(app *handlers.App, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/presets", app.Presets)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.Generate)
	})
	r.Route("/v1/spritesheets", func(r chi.Router) {
		r.Post("/", app.GenerateSpritesheet)
	})
	r.Route("/v1/assets", func(r chi.Router) {
		r.Get("/", app.ListAssets)
		r.Delete("/{id}", app.DeleteAsset)
	})

	if staticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	return r
}
