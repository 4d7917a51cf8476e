package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fluxbatch/internal/http/handlers"
	"fluxbatch/internal/infra"
	"fluxbatch/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Post("/v1/uploads", app.UploadAsset)

	r.Route("/v1/predictions", func(r chi.Router) {
		r.Post("/", app.CreatePrediction)
		r.Get("/{id}", app.GetPrediction)
	})

	r.Route("/v1/gallery", func(r chi.Router) {
		r.Get("/", app.ListGallery)
		r.Get("/stats", app.GalleryStats)
		r.Delete("/{id}", app.DeleteGalleryEntry)
		r.Delete("/", app.ClearGallery)
	})

	r.Route("/v1/prompts", func(r chi.Router) {
		r.Get("/", app.ListPrompts)
		r.Post("/", app.SavePrompt)
		r.Get("/last", app.LastPrompt)
		r.Delete("/", app.ClearPrompts)
	})

	r.Route("/v1/credentials/replicate", func(r chi.Router) {
		r.Get("/", app.CredentialStatus)
		r.Put("/", app.SetCredential)
	})

	r.Route("/v1/batch", func(r chi.Router) {
		r.Post("/items", app.AddBatchItem)
		r.Get("/items", app.ListBatchItems)
		r.Delete("/items/{id}", app.RemoveBatchItem)
		r.Post("/run", app.StartRun)
		r.Post("/cancel", app.CancelRun)
		r.Get("/status", app.RunStatus)
		r.Get("/archive", app.DownloadArchive)
	})

	return r
}
