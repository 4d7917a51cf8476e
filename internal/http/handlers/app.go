package handlers

import (
	"encoding/json"
	"net/http"

	"fluxbatch/internal/infra"
	"fluxbatch/internal/pipeline"
	"fluxbatch/internal/providers/cloudinary"
	"fluxbatch/internal/providers/replicate"
	"fluxbatch/internal/storage"
)

// App bundles the handler dependencies.
type App struct {
	Gallery     storage.GalleryStore
	Prompts     storage.PromptStore
	Credentials storage.CredentialStore
	Uploads     *cloudinary.Uploader
	Predictions *replicate.Client
	Batch       *pipeline.Manager
	Fetch       *http.Client
	Logger      infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
