package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"PulseOutreach/internal/content"
	"PulseOutreach/internal/csvparser"
	"PulseOutreach/internal/email"
	"PulseOutreach/internal/metrics"
	"PulseOutreach/internal/models"
)

func (m *Manager) run(ctx context.Context, sender email.Sender, req models.CampaignRequest) {
	log := m.log.With(zap.String("campaign_id", req.CampaignID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("campaign panicked", zap.Any("panic", r))
			m.finish(log, models.StatusError, "Campaign error: %v", r)
		}
	}()

	recipients, err := m.resolve(req)
	if err != nil {
		log.Warn("recipient resolution failed", zap.Error(err))
		m.finish(log, models.StatusError, "Campaign error: %v", err)
		return
	}

	total := len(recipients)
	m.progress.setTotal(total)
	m.progress.logf("Found %d recipients", total)

	useAI := req.UseAI && m.generator != nil
	switch {
	case useAI:
		m.progress.logf("AI personalization enabled")
	case req.UseAI:
		m.progress.logf("AI not available, using template")
	}

	// ----------------------------
	// Pacing
	// ----------------------------
	limiter := rate.NewLimiter(rate.Every(m.interval(req)), 1)

	ledgerScope := ""
	if m.opts.CampaignScoped {
		ledgerScope = req.CampaignID
	}

	for i, r := range recipients {
		if m.progress.cancelRequested() || ctx.Err() != nil {
			m.cancelled(log)
			return
		}

		if m.ledger.HasBeenSent(ctx, r.Email, ledgerScope) {
			m.progress.recordSkipped(r.Email)
			metrics.EmailsSkipped.Inc()
			log.Info("recipient already emailed", zap.String("to", r.Email))
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			m.cancelled(log)
			return
		}

		subject, body := m.compose(ctx, req, r, useAI)

		m.progress.logf("Sending %d/%d to %s", i+1, total, r.Email)

		sendCtx, cancelSend := context.WithTimeout(ctx, m.opts.SendTimeout)
		err := sender.Send(sendCtx, email.Message{
			To:             r.Email,
			Subject:        subject,
			Body:           body,
			AttachmentPath: req.AttachmentPath,
		})
		cancelSend()

		// an abort caused by cancellation is not an attempt
		if err != nil && ctx.Err() != nil {
			log.Info("in-flight send aborted", zap.String("to", r.Email))
			m.cancelled(log)
			return
		}

		// ledger writes must land even if a cancel arrives right now
		ledgerCtx := context.WithoutCancel(ctx)

		if err != nil {
			log.Error("email send failed", zap.String("to", r.Email), zap.Error(err))
			m.ledger.Record(ledgerCtx, r.Email, models.LedgerFailed, subject, req.CampaignID)
			m.progress.recordFailed(r.Email, err)
			metrics.EmailFailures.Inc()
			continue
		}

		log.Info("email sent successfully", zap.String("to", r.Email))
		m.ledger.Record(ledgerCtx, r.Email, models.LedgerSent, subject, req.CampaignID)
		m.progress.recordSent(r.Email)
		metrics.EmailsSent.Inc()
	}

	if m.progress.cancelRequested() {
		m.cancelled(log)
		return
	}

	if state, ok := m.progress.complete(); ok {
		metrics.Campaigns.WithLabelValues(string(models.StatusCompleted)).Inc()
		log.Info("campaign completed",
			zap.Int("sent", state.Sent),
			zap.Int("failed", state.Failed),
			zap.Int("skipped", state.Skipped),
		)
	}
}

func (m *Manager) resolve(req models.CampaignRequest) ([]models.Recipient, error) {
	maxCount := req.MaxEmails
	if maxCount <= 0 {
		maxCount = m.opts.DefaultMaxEmails
	}

	var (
		recipients []models.Recipient
		err        error
	)
	switch {
	case len(req.Recipients) > 0:
		recipients = csvparser.Normalize(req.Recipients, maxCount)
	case req.RecipientsFile != "":
		recipients, err = m.read(req.RecipientsFile, maxCount)
		if err != nil {
			return nil, fmt.Errorf("read recipients: %w", err)
		}
	}

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return recipients, nil
}

// interval is the pacing gap between sends: one hour divided by the
// effective rate.
func (m *Manager) interval(req models.CampaignRequest) time.Duration {
	perHour := m.opts.RatePerHour
	if req.RatePerHour > 0 && req.RatePerHour < perHour {
		perHour = req.RatePerHour
	}
	return time.Hour / time.Duration(perHour)
}

// compose never fails: generation errors fall back to the request's
// templates, then to built-in text.
func (m *Manager) compose(ctx context.Context, req models.CampaignRequest, r models.Recipient, useAI bool) (string, string) {
	subject := content.Render(req.Subject, r)
	if subject == "" {
		subject = content.FallbackSubject(r.Company, req.JobRole)
	}
	body := content.Render(req.Body, r)
	if body == "" {
		body = content.FallbackEmail(r.Name, r.Company, req.JobRole)
	}

	if !useAI {
		return subject, body
	}

	// a hung generator must not stall the campaign
	genCtx, cancel := context.WithTimeout(ctx, m.opts.SendTimeout)
	defer cancel()

	aiSubject, err := m.generator.GenerateSubject(genCtx, content.SubjectParams{
		Name:    r.Name,
		Company: r.Company,
		JobRole: req.JobRole,
	})
	if err == nil {
		var aiBody string
		aiBody, err = m.generator.GenerateEmail(genCtx, content.EmailParams{
			Name:       r.Name,
			Company:    r.Company,
			JobRole:    req.JobRole,
			Highlights: req.Highlights,
			ResumeText: req.ResumeText,
		})
		if err == nil {
			m.progress.logf("AI content generated for %s", r.Name)
			return aiSubject, aiBody
		}
	}

	m.log.Warn("content generation failed, using template",
		zap.String("to", r.Email),
		zap.Error(err),
	)
	m.progress.logf("AI generation failed for %s, using template", r.Name)
	metrics.ContentFallbacks.Inc()
	return subject, body
}

func (m *Manager) cancelled(log *zap.Logger) {
	m.finish(log, models.StatusCancelled, "Campaign cancelled by user")
}

func (m *Manager) finish(log *zap.Logger, status models.CampaignStatus, format string, args ...any) {
	state, ok := m.progress.finish(status, format, args...)
	if !ok {
		return
	}
	metrics.Campaigns.WithLabelValues(string(status)).Inc()
	log.Info("campaign finished",
		zap.String("status", string(status)),
		zap.Int("sent", state.Sent),
		zap.Int("failed", state.Failed),
		zap.Int("skipped", state.Skipped),
	)
}
