// Package ledger records every send attempt and answers whether an address
// has already been emailed. Entries are append-only.
package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"PulseOutreach/internal/metrics"
	"PulseOutreach/internal/models"
)

// Store is the durable side of the ledger. *db.Store and *MemoryStore
// implement it.
type Store interface {
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	SentExists(ctx context.Context, email, campaignID string) (bool, error)
	CountSent(ctx context.Context) (int64, error)
}

type Ledger struct {
	store Store
	log   *zap.Logger
}

func New(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, log: logger.Named("ledger")}
}

// HasBeenSent reports whether email already has a sent entry. An empty
// campaignID checks across all campaigns. Lookup errors answer false.
func (l *Ledger) HasBeenSent(ctx context.Context, email, campaignID string) bool {
	email = normalize(email)

	ok, err := l.store.SentExists(ctx, email, campaignID)
	if err != nil {
		l.log.Error("ledger lookup failed",
			zap.String("email", email),
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// Record appends one attempt. Failures are logged and never returned.
func (l *Ledger) Record(ctx context.Context, email string, status models.LedgerStatus, subject, campaignID string) {
	entry := &models.LedgerEntry{
		Email:      normalize(email),
		Status:     status,
		Subject:    subject,
		CampaignID: campaignID,
	}

	if err := l.store.InsertEntry(ctx, entry); err != nil {
		l.log.Error("ledger write failed",
			zap.String("email", entry.Email),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		metrics.LedgerWriteFailures.Inc()
	}
}

func (l *Ledger) Stats(ctx context.Context) models.LedgerStats {
	n, err := l.store.CountSent(ctx)
	if err != nil {
		l.log.Error("ledger stats failed", zap.Error(err))
		return models.LedgerStats{}
	}
	return models.LedgerStats{TotalUniqueSent: n}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
