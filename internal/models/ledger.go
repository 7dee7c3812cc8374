package models

import "time"

type LedgerStatus string

const (
	LedgerSent   LedgerStatus = "sent"
	LedgerFailed LedgerStatus = "failed"
)

// LedgerEntry is one immutable send attempt.
type LedgerEntry struct {
	ID         int64        `json:"id"`
	Email      string       `json:"email"`
	SentAt     time.Time    `json:"sent_at"`
	Status     LedgerStatus `json:"status"`
	Subject    string       `json:"subject,omitempty"`
	CampaignID string       `json:"campaign_id,omitempty"`
}

type LedgerStats struct {
	TotalUniqueSent int64 `json:"total_unique_sent"`
}
