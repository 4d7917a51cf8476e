package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/providers/cloudinary"
)

const maxUploadBytes = 32 << 20

// UploadAsset accepts a multipart image upload, pushes it to the CDN and
// records the uploaded artifact in the gallery.
func (a *App) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := a.Uploads.Upload(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, cloudinary.ErrNotConfigured) {
			a.jsonError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("filename", header.Filename).Msg("upload failed")
		a.jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	entry := domain.GalleryEntry{
		ID:        uuid.NewString(),
		URL:       result.SecureURL,
		Filename:  header.Filename,
		Kind:      domain.KindUploaded,
		Tool:      r.FormValue("tool"),
		Timestamp: time.Now(),
	}
	if err := a.Gallery.Add(r.Context(), entry); err != nil {
		a.Logger.Error().Err(err).Msg("record uploaded asset failed")
	}

	a.json(w, http.StatusOK, result)
}
