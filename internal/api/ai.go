package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"PulseOutreach/internal/content"
	"PulseOutreach/internal/models"
)

const maxBatchPreviews = 10

type generateEmailRequest struct {
	RecipientName string `json:"recipient_name"`
	Company       string `json:"company"`
	JobRole       string `json:"job_role"`
	Highlights    string `json:"highlights"`
	ResumeText    string `json:"resume_text"`
}

func (h *Handler) generatorMissing(w http.ResponseWriter) bool {
	if h.Generator != nil {
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   content.ErrNotConfigured.Error(),
		"message": "Please configure GEMINI_API_KEY in your .env file",
	})
	return true
}

// GenerateEmail previews AI content for one recipient.
func (h *Handler) GenerateEmail(w http.ResponseWriter, r *http.Request) {
	if h.generatorMissing(w) {
		return
	}

	var req generateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RecipientName == "" {
		req.RecipientName = models.DefaultRecipientName
	}

	subject, err := h.Generator.GenerateSubject(r.Context(), content.SubjectParams{
		Name:    req.RecipientName,
		Company: req.Company,
		JobRole: req.JobRole,
	})
	if err != nil {
		h.generationError(w, err)
		return
	}
	body, err := h.Generator.GenerateEmail(r.Context(), content.EmailParams{
		Name:       req.RecipientName,
		Company:    req.Company,
		JobRole:    req.JobRole,
		Highlights: req.Highlights,
		ResumeText: req.ResumeText,
	})
	if err != nil {
		h.generationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"subject": subject,
		"body":    body,
		"metadata": map[string]any{
			"recipient_name": req.RecipientName,
			"company":        req.Company,
			"job_role":       req.JobRole,
			"used_resume":    req.ResumeText != "",
		},
	})
}

type batchRecipient struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name"`
	Company string `json:"company"`
	JobRole string `json:"job_role,omitempty"`
}

type batchResult struct {
	Recipient batchRecipient `json:"recipient"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body,omitempty"`
	Error     string         `json:"error,omitempty"`
	Success   bool           `json:"success"`
}

// GenerateBatchEmails previews AI content for up to ten recipients.
// Per-recipient failures are reported inline.
func (h *Handler) GenerateBatchEmails(w http.ResponseWriter, r *http.Request) {
	if h.generatorMissing(w) {
		return
	}

	var req struct {
		Recipients []batchRecipient `json:"recipients"`
		JobRole    string           `json:"job_role"`
		ResumeText string           `json:"resume_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Recipients) == 0 {
		writeError(w, http.StatusBadRequest, "No recipients provided")
		return
	}
	if len(req.Recipients) > maxBatchPreviews {
		req.Recipients = req.Recipients[:maxBatchPreviews]
	}

	results := make([]batchResult, 0, len(req.Recipients))
	for _, rc := range req.Recipients {
		name := rc.Name
		if name == "" {
			name = models.DefaultRecipientName
		}
		role := rc.JobRole
		if role == "" {
			role = req.JobRole
		}

		res := batchResult{Recipient: rc}
		subject, err := h.Generator.GenerateSubject(r.Context(), content.SubjectParams{Name: name, Company: rc.Company, JobRole: role})
		if err == nil {
			res.Subject = subject
			res.Body, err = h.Generator.GenerateEmail(r.Context(), content.EmailParams{
				Name:       name,
				Company:    rc.Company,
				JobRole:    role,
				ResumeText: req.ResumeText,
			})
		}
		if err != nil {
			res.Subject = ""
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"emails":  results,
		"count":   len(results),
	})
}

func (h *Handler) generationError(w http.ResponseWriter, err error) {
	if errors.Is(err, content.ErrNotConfigured) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Log.Error("content generation failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   err.Error(),
		"message": "Failed to generate email content",
	})
}
