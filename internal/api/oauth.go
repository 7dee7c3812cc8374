package api

import (
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"PulseOutreach/internal/auth"
)

func (h *Handler) oauthMissing(w http.ResponseWriter) bool {
	if h.Auth != nil {
		return false
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   auth.ErrNotConfigured.Error(),
		"message": "Please configure Gmail OAuth credentials in .env file",
	})
	return true
}

func (h *Handler) GmailAuthorize(w http.ResponseWriter, r *http.Request) {
	if h.oauthMissing(w) {
		return
	}
	authURL, err := h.Auth.AuthCodeURL(r.Context())
	if err != nil {
		h.Log.Error("failed to start oauth flow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"auth_url": authURL,
	})
}

// Login redirects the browser straight to the consent screen.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.oauthMissing(w) {
		return
	}
	authURL, err := h.Auth.AuthCodeURL(r.Context())
	if err != nil {
		h.Log.Error("failed to start oauth flow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		h.Log.Warn("oauth consent refused", zap.String("error", e))
		h.redirectFrontend(w, r, "error", e)
		return
	}
	if h.Auth == nil {
		h.redirectFrontend(w, r, "error", "not_configured")
		return
	}

	err := h.Auth.Exchange(r.Context(), q.Get("state"), q.Get("code"))
	switch {
	case errors.Is(err, auth.ErrInvalidState):
		h.redirectFrontend(w, r, "error", "invalid_state")
	case err != nil:
		h.Log.Error("oauth callback failed", zap.Error(err))
		h.redirectFrontend(w, r, "error", "callback_failed")
	default:
		h.redirectFrontend(w, r, "success", "")
	}
}

func (h *Handler) GmailStatus(w http.ResponseWriter, r *http.Request) {
	connected := h.Auth != nil && h.Auth.Connected(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"authenticated":   connected,
		"has_credentials": connected,
	})
}

func (h *Handler) GmailDisconnect(w http.ResponseWriter, r *http.Request) {
	if h.oauthMissing(w) {
		return
	}
	if err := h.Auth.Disconnect(r.Context()); err != nil {
		h.Log.Error("failed to disconnect gmail", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Gmail account disconnected",
	})
}

func (h *Handler) redirectFrontend(w http.ResponseWriter, r *http.Request, result, message string) {
	target, err := url.Parse(h.Cfg.FrontendURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid FRONTEND_URL")
		return
	}
	q := target.Query()
	q.Set("auth", result)
	if message != "" {
		q.Set("message", message)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
