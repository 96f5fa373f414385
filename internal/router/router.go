package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"salescoach-backend/internal/handlers"
	"salescoach-backend/internal/middleware"
	"salescoach-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	trainingHandler *handlers.TrainingHandler,
	catalogHandler *handlers.CatalogHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session starts fan out into completion calls; keep them at 10/min per IP.
	startLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/training", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/categories", catalogHandler.ListCategories)

			r.Route("/sessions", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(startLimiter.Middleware)
					r.Post("/", trainingHandler.Start)
				})

				r.Get("/{id}", trainingHandler.Get)
				r.Post("/{id}/answers", trainingHandler.SubmitAnswer)
				r.Post("/{id}/pause", trainingHandler.Pause)
				r.Post("/{id}/resume", trainingHandler.Resume)
				r.Post("/{id}/autosave", trainingHandler.Autosave)
				r.Post("/{id}/end", trainingHandler.End)
				r.Get("/{id}/report", trainingHandler.GetReport)
			})
		})

		// WebSocket (token auth via query param)
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
