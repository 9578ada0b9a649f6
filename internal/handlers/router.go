package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tracklight/agent-core/internal/services"
)

type RouterDeps struct {
	Tokens      *services.TokenService
	Pairing     *PairingHandler
	Ingest      *IngestHandler
	Screenshots *ScreenshotHandler
	Timer       *TimerHandler
	Projects    *ProjectHandler
}

// NewRouter mounts three route groups by auth mode: web session, no auth
// (pairing bootstrap), and bearer access credential.
func NewRouter(deps RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.Handler())

	// Web-session routes: the surrounding web app authenticates the user and
	// forwards the identity.
	router.Route("/api", func(r chi.Router) {
		r.Use(RequireWebUser)
		r.Post("/pairing/begin", deps.Pairing.Begin)
		r.Get("/devices", deps.Pairing.List)
		r.Post("/devices/{deviceID}/revoke", deps.Pairing.Revoke)
		r.Post("/timer/start", deps.Timer.Start)
		r.Post("/timer/pause", deps.Timer.Pause)
		r.Post("/timer/resume", deps.Timer.Resume)
		r.Post("/timer/stop", deps.Timer.Stop)
		r.Post("/projects/{projectID}/status", deps.Projects.SetStatus)
	})

	router.Route("/agent", func(r chi.Router) {
		// Bootstrap routes: the pairing code or the device secret is the
		// proof, no prior credential exists.
		r.Post("/pairing/complete", deps.Pairing.Complete)
		r.Post("/credentials/refresh", deps.Pairing.Refresh)

		// Everything else requires a bearer access credential.
		r.Group(func(r chi.Router) {
			r.Use(RequireAccessCredential(deps.Tokens))
			r.Post("/heartbeat", deps.Ingest.Heartbeat)
			r.Post("/events/batch", deps.Ingest.EventsBatch)
			r.Post("/screenshots/presign", deps.Screenshots.Presign)
			r.Put("/screenshots/{screenshotID}/upload", deps.Screenshots.Upload)
			r.Post("/screenshots/{screenshotID}/confirm", deps.Screenshots.Confirm)
			r.Post("/timer/start", deps.Timer.Start)
			r.Post("/timer/pause", deps.Timer.Pause)
			r.Post("/timer/resume", deps.Timer.Resume)
			r.Post("/timer/stop", deps.Timer.Stop)
		})
	})

	return router
}
