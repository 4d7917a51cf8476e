package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createPredictionRequest struct {
	Version string          `json:"version"`
	Input   json.RawMessage `json:"input"`
}

// CreatePrediction proxies a job submission to the inference provider using
// the stored credential.
func (a *App) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req createPredictionRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Version) == "" {
		a.jsonError(w, http.StatusBadRequest, "model version is required")
		return
	}
	token, ok := a.requireToken(w, r)
	if !ok {
		return
	}
	prediction, err := a.Predictions.CreatePrediction(r.Context(), token, req.Version, req.Input)
	if err != nil {
		a.jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.json(w, http.StatusCreated, prediction)
}

// GetPrediction proxies a job status fetch.
func (a *App) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token, ok := a.requireToken(w, r)
	if !ok {
		return
	}
	prediction, err := a.Predictions.GetPrediction(r.Context(), token, id)
	if err != nil {
		a.jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.json(w, http.StatusOK, prediction)
}

func (a *App) requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := a.Credentials.Token(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to load credential")
		return "", false
	}
	if strings.TrimSpace(token) == "" {
		a.jsonError(w, http.StatusUnauthorized, "replicate api token is not configured")
		return "", false
	}
	return token, true
}
