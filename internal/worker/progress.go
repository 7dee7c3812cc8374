package worker

import (
	"fmt"
	"sync"
	"time"

	"PulseOutreach/internal/models"
)

// Progress is the live state of the current campaign. Only the campaign
// goroutine writes it; any number of readers take snapshots.
type Progress struct {
	mu    sync.RWMutex
	state models.ProgressState
	now   func() time.Time
}

func newProgress() *Progress {
	return &Progress{
		state: models.ProgressState{Status: models.StatusIdle, Logs: []string{}},
		now:   time.Now,
	}
}

// Snapshot returns a copy that shares nothing with the live state.
func (p *Progress) Snapshot() models.ProgressState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.state
	s.Logs = append(make([]string, 0, len(p.state.Logs)), p.state.Logs...)
	if p.state.StartedAt != nil {
		t := *p.state.StartedAt
		s.StartedAt = &t
	}
	if p.state.FinishedAt != nil {
		t := *p.state.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// begin moves to running. It fails when a campaign is already running.
func (p *Progress) begin(campaignID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Status == models.StatusRunning {
		return false
	}
	started := p.now()
	p.state = models.ProgressState{
		Status:     models.StatusRunning,
		CampaignID: campaignID,
		Logs:       []string{},
		StartedAt:  &started,
	}
	return true
}

func (p *Progress) setTotal(n int) {
	p.mu.Lock()
	p.state.Total = n
	p.mu.Unlock()
}

func (p *Progress) logf(format string, args ...any) {
	p.mu.Lock()
	p.appendLog(format, args...)
	p.mu.Unlock()
}

func (p *Progress) appendLog(format string, args ...any) {
	p.state.Logs = append(p.state.Logs, fmt.Sprintf(format, args...))
}

func (p *Progress) recordSent(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Sent++
	p.state.Current++
	p.appendLog("Email sent to %s", email)
}

func (p *Progress) recordFailed(email string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Failed++
	p.state.Current++
	p.appendLog("Failed to send to %s: %v", email, err)
}

func (p *Progress) recordSkipped(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Skipped++
	p.appendLog("Skipping %s: already emailed", email)
}

// requestCancel sets the cancelled flag of a running campaign.
func (p *Progress) requestCancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Status != models.StatusRunning {
		return false
	}
	p.state.Cancelled = true
	return true
}

func (p *Progress) cancelRequested() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Cancelled
}

// finish moves a running campaign to a terminal status and appends the
// closing log line. A terminal status is never overwritten.
func (p *Progress) finish(status models.CampaignStatus, format string, args ...any) (models.ProgressState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Status != models.StatusRunning || !status.Terminal() {
		return p.state, false
	}
	finished := p.now()
	p.state.Status = status
	p.state.FinishedAt = &finished
	p.appendLog(format, args...)
	return p.state, true
}

// complete finishes with the summary line. Counters are only written by
// the campaign goroutine, which is the caller.
func (p *Progress) complete() (models.ProgressState, bool) {
	p.mu.RLock()
	sent, failed := p.state.Sent, p.state.Failed
	p.mu.RUnlock()

	return p.finish(models.StatusCompleted, "Campaign completed: %d sent, %d failed", sent, failed)
}
