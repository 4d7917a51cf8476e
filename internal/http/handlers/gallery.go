package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fluxbatch/internal/domain"
)

// ListGallery returns gallery entries newest first, optionally filtered by
// kind (uploaded|generated) and originating tool.
func (a *App) ListGallery(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Gallery.List(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to list gallery")
		return
	}
	kind := r.URL.Query().Get("kind")
	tool := r.URL.Query().Get("tool")
	if kind != "" || tool != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if kind != "" && string(e.Kind) != kind {
				continue
			}
			if tool != "" && e.Tool != tool {
				continue
			}
			filtered = append(filtered, e)
		}
		entries = filtered
	}
	a.json(w, http.StatusOK, map[string]any{"entries": entries})
}

// GalleryStats reports occupancy counts.
func (a *App) GalleryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Gallery.Stats(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to load gallery stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}

// DeleteGalleryEntry removes one entry by id.
func (a *App) DeleteGalleryEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Gallery.Remove(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "gallery entry not found")
			return
		}
		a.jsonError(w, http.StatusInternalServerError, "failed to delete gallery entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearGallery removes every entry.
func (a *App) ClearGallery(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Clear(r.Context()); err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to clear gallery")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
