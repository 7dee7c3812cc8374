package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"PulseOutreach/internal/auth"
	"PulseOutreach/internal/config"
	"PulseOutreach/internal/content"
	"PulseOutreach/internal/csvparser"
	"PulseOutreach/internal/email"
	"PulseOutreach/internal/ledger"
	"PulseOutreach/internal/models"
	"PulseOutreach/internal/worker"
)

// SenderSource builds the transport for one campaign or test send. It
// returns auth.ErrNotAuthenticated when Gmail has not been connected.
type SenderSource func(ctx context.Context) (email.Sender, error)

// ContentGenerator is satisfied by *content.Generator.
type ContentGenerator interface {
	GenerateSubject(ctx context.Context, p content.SubjectParams) (string, error)
	GenerateEmail(ctx context.Context, p content.EmailParams) (string, error)
}

type Handler struct {
	Campaigns *worker.Manager
	Ledger    *ledger.Ledger
	Senders   SenderSource

	// Generator and Auth are nil when their credentials are not configured.
	Generator ContentGenerator
	Auth      *auth.Gmail

	// Checks are run by /health, keyed by collaborator name.
	Checks map[string]func(context.Context) error

	Cfg *config.Config
	Log *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"message": "Outreach campaign API",
		"version": "2.0",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"services": map[string]bool{
			"gemini_ai":           h.Generator != nil,
			"gmail_oauth":         h.Auth != nil,
			"gmail_authenticated": h.Auth != nil && h.Auth.Connected(ctx),
		},
		"campaign_running": h.Campaigns.Running(),
	})
}

func (h *Handler) SendEmails(w http.ResponseWriter, r *http.Request) {
	var req models.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if h.Campaigns.Running() {
		writeError(w, http.StatusConflict, worker.ErrCampaignRunning.Error())
		return
	}

	sender, err := h.Senders(r.Context())
	if err != nil {
		h.senderError(w, err)
		return
	}

	if len(req.Recipients) == 0 {
		path, ok := h.uploadedFile(req.RecipientsFile)
		if !ok {
			writeError(w, http.StatusBadRequest, "CSV file not found")
			return
		}
		req.RecipientsFile = path
	}

	if req.AttachmentPath != "" {
		path, ok := h.uploadedFile(req.AttachmentPath)
		if !ok {
			writeError(w, http.StatusBadRequest, "resume file not found")
			return
		}
		req.AttachmentPath = path
	}

	id, err := h.Campaigns.Start(r.Context(), sender, req)
	if errors.Is(err, worker.ErrCampaignRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("campaign start failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Email campaign started",
		"campaign_id": id,
	})
}

func (h *Handler) Progress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Campaigns.Progress())
}

func (h *Handler) CancelEmails(w http.ResponseWriter, _ *http.Request) {
	if err := h.Campaigns.Cancel(); err != nil {
		writeError(w, http.StatusBadRequest, "No active campaign to cancel")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email campaign cancelled",
	})
}

func (h *Handler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To         string `json:"test_email"`
		Subject    string `json:"subject"`
		Body       string `json:"body"`
		ResumeFile string `json:"resume_file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !csvparser.ValidEmail(strings.TrimSpace(req.To)) {
		writeError(w, http.StatusBadRequest, "No test email provided")
		return
	}
	if req.Subject == "" {
		req.Subject = "Test Email"
	}
	if req.Body == "" {
		req.Body = "This is a test email."
	}

	sender, err := h.Senders(r.Context())
	if err != nil {
		h.senderError(w, err)
		return
	}

	msg := email.Message{To: strings.TrimSpace(req.To), Subject: req.Subject, Body: req.Body}
	if req.ResumeFile != "" {
		if path, ok := h.uploadedFile(req.ResumeFile); ok {
			msg.AttachmentPath = path
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Cfg.SendTimeout)
	defer cancel()

	if err := sender.Send(ctx, msg); err != nil {
		h.Log.Error("test email failed", zap.String("to", msg.To), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send test email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Test email sent to " + msg.To,
	})
}

func (h *Handler) LedgerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.Stats(r.Context()))
}

func (h *Handler) senderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrNotConfigured):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Not authenticated",
			"message": "Please connect your Gmail account first",
		})
	default:
		h.Log.Error("mail transport unavailable", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// uploadedFile resolves a client supplied path to an existing regular file
// inside the upload directory.
func (h *Handler) uploadedFile(p string) (string, bool) {
	if strings.TrimSpace(p) == "" {
		return "", false
	}

	root, err := filepath.Abs(h.Cfg.UploadDir)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(p) {
		// bare names and paths returned by /upload are both accepted
		if rel, err := filepath.Rel(h.Cfg.UploadDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}
