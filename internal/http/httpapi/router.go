package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"charity/internal/http/handlers"
	"charity/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
		middleware.AuthJWT(jwtSecret),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/charity_project", func(r chi.Router) {
		r.Get("/", app.ProjectsList)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperuser)
			r.Post("/", app.ProjectsCreate)
			r.Patch("/{id}", app.ProjectsUpdate)
			r.Delete("/{id}", app.ProjectsDelete)
		})
	})

	r.Route("/donation", func(r chi.Router) {
		r.With(middleware.RequireSuperuser).Get("/", app.DonationsList)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/my", app.DonationsMine)
			r.Post("/", app.DonationsCreate)
		})
	})

	return r
}
