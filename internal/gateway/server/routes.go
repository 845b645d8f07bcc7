package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"labsite/internal/gateway/handler"
	"labsite/internal/gateway/middleware"
	"labsite/internal/gateway/visitor"
)

type Handlers struct {
	Popup        *handler.PopupHandler
	Simulation   *handler.SimulationHandler
	Media        *handler.MediaHandler
	SecureCookie bool
	// AllowedOrigins limits credentialed cross-origin calls; empty allows any.
	AllowedOrigins []string
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(h.AllowedOrigins))

	r.Get("/healthz", handler.Health)
	r.Get("/media/*", h.Media.Serve)

	r.Route("/api", func(r chi.Router) {
		r.Use(visitor.Middleware(h.SecureCookie))

		r.Get("/popups", h.Popup.List)
		r.Post("/popups/{id}/dismiss", h.Popup.Dismiss)
		r.Post("/popups/{id}/follow", h.Popup.Follow)

		r.Post("/simulations", h.Simulation.Submit)
		r.Get("/simulations/current", h.Simulation.Current)
		r.Get("/simulations/current/frame.png", h.Simulation.Frame)

		r.Post("/media", h.Media.Upload)
	})
	return r
}
