package handlers

import (
	"net/http"
	"strings"
)

type savePromptRequest struct {
	Text string `json:"text"`
}

// ListPrompts returns the prompt history, most recent first.
func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.Prompts.List(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to list prompts")
		return
	}
	if prompts == nil {
		prompts = []string{}
	}
	a.json(w, http.StatusOK, map[string]any{"prompts": prompts})
}

// SavePrompt stores a prompt, moving an existing duplicate to the front.
func (a *App) SavePrompt(w http.ResponseWriter, r *http.Request) {
	var req savePromptRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		a.jsonError(w, http.StatusBadRequest, "prompt text is required")
		return
	}
	if err := a.Prompts.Save(r.Context(), req.Text); err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to save prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LastPrompt returns the most recently saved prompt, empty when none exists.
func (a *App) LastPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := a.Prompts.Last(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to load last prompt")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"prompt": prompt})
}

// ClearPrompts wipes the history.
func (a *App) ClearPrompts(w http.ResponseWriter, r *http.Request) {
	if err := a.Prompts.Clear(r.Context()); err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to clear prompts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
