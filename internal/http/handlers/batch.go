package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/pipeline"
	"fluxbatch/internal/profile"
)

// AddBatchItem queues one work item. A multipart request with a "file" field
// queues an image-backed item; a bare JSON body queues a sourceless item for
// text-to-image profiles.
func (a *App) AddBatchItem(w http.ResponseWriter, r *http.Request) {
	if a.Batch.Running() {
		a.jsonError(w, http.StatusConflict, "queue is locked while a run is active")
		return
	}

	var item domain.WorkItem
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
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
		item = domain.WorkItem{
			Filename:   header.Filename,
			MIME:       header.Header.Get("Content-Type"),
			SourceData: data,
		}
	} else {
		var req struct {
			Filename string `json:"filename"`
		}
		if r.ContentLength > 0 && !a.decode(w, r, &req) {
			return
		}
		item = domain.WorkItem{Filename: req.Filename}
	}

	id := a.Batch.Queue().Add(item)
	added, _ := a.Batch.Queue().Get(id)
	a.json(w, http.StatusCreated, added)
}

// ListBatchItems returns a snapshot of the queue.
func (a *App) ListBatchItems(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Batch.Queue().Snapshot()})
}

// RemoveBatchItem drops an item from the queue. Items are only ever removed
// by this explicit user action.
func (a *App) RemoveBatchItem(w http.ResponseWriter, r *http.Request) {
	if a.Batch.Running() {
		a.jsonError(w, http.StatusConflict, "queue is locked while a run is active")
		return
	}
	id := chi.URLParam(r, "id")
	if !a.Batch.Queue().Remove(id) {
		a.jsonError(w, http.StatusNotFound, "work item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startRunRequest struct {
	Profile  string        `json:"profile"`
	Variants int           `json:"variants"`
	Knobs    profile.Knobs `json:"knobs"`
}

// StartRun launches a batch run over the queued items.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if !a.decode(w, r, &req) {
		return
	}
	spec, err := profile.Lookup(profile.Name(req.Profile))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "unknown profile: "+req.Profile)
		return
	}
	if spec.NeedsPrompt && strings.TrimSpace(req.Knobs.Prompt) == "" {
		a.jsonError(w, http.StatusBadRequest, "prompt is required for profile "+req.Profile)
		return
	}

	// Auto-save the prompt the moment a run starts, mirroring what a user
	// would want to recall later regardless of the run outcome.
	if strings.TrimSpace(req.Knobs.Prompt) != "" {
		if err := a.Prompts.Save(r.Context(), req.Knobs.Prompt); err != nil {
			a.Logger.Error().Err(err).Msg("auto-save prompt failed")
		}
	}

	plan := pipeline.Plan{
		Profile:  spec.Name,
		Knobs:    req.Knobs,
		Variants: req.Variants,
	}
	// The run outlives this request, so it gets its own context.
	if err := a.Batch.Start(context.Background(), plan); err != nil {
		if errors.Is(err, domain.ErrRunActive) {
			a.jsonError(w, http.StatusConflict, err.Error())
			return
		}
		a.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusAccepted, a.Batch.Status())
}

// CancelRun requests cooperative cancellation of the active run.
func (a *App) CancelRun(w http.ResponseWriter, r *http.Request) {
	canceled := a.Batch.Cancel()
	a.json(w, http.StatusOK, map[string]bool{"canceled": canceled})
}

// RunStatus reports whether a run is active and the last run's outcome.
func (a *App) RunStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Batch.Status())
}
