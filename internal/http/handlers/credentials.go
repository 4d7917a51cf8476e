package handlers

import (
	"net/http"
	"strings"
)

type setCredentialRequest struct {
	Token string `json:"token"`
}

// CredentialStatus reports whether a provider token is configured. The token
// itself is never returned.
func (a *App) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	token, err := a.Credentials.Token(r.Context())
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"configured": strings.TrimSpace(token) != ""})
}

// SetCredential stores the provider token.
func (a *App) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req setCredentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		a.jsonError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := a.Credentials.SetToken(r.Context(), req.Token); err != nil {
		a.jsonError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
