package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"PulseOutreach/internal/models"
)

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.LedgerEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertEntry(_ context.Context, entry *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = int64(len(m.entries) + 1)
	entry.Email = strings.ToLower(entry.Email)
	entry.SentAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryStore) SentExists(_ context.Context, email, campaignID string) (bool, error) {
	email = strings.ToLower(email)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.Email != email || e.Status != models.LedgerSent {
			continue
		}
		if campaignID == "" || e.CampaignID == campaignID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CountSent(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.entries {
		if e.Status == models.LedgerSent {
			n++
		}
	}
	return n, nil
}

// Entries returns a copy of everything recorded so far.
func (m *MemoryStore) Entries() []models.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
