// Package worker runs outreach campaigns: one supervised goroutine per
// campaign that sends to each recipient in order, paced to a rate
// ceiling, publishing progress and honoring cancellation.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PulseOutreach/internal/content"
	"PulseOutreach/internal/csvparser"
	"PulseOutreach/internal/email"
	"PulseOutreach/internal/models"
)

var (
	ErrCampaignRunning  = errors.New("a campaign is already running")
	ErrNoActiveCampaign = errors.New("no active campaign to cancel")
	ErrNoRecipients     = errors.New("no valid recipients found")
)

// Ledger is the duplicate-suppression view the worker needs.
type Ledger interface {
	HasBeenSent(ctx context.Context, email, campaignID string) bool
	Record(ctx context.Context, email string, status models.LedgerStatus, subject, campaignID string)
}

// Generator writes personalized content. *content.Generator implements it.
type Generator interface {
	GenerateSubject(ctx context.Context, p content.SubjectParams) (string, error)
	GenerateEmail(ctx context.Context, p content.EmailParams) (string, error)
}

// RecipientReader loads recipients from a file. csvparser.ReadFile is the default.
type RecipientReader func(path string, maxCount int) ([]models.Recipient, error)

type Options struct {
	// RatePerHour is the ceiling. Requests may ask for a lower rate only.
	RatePerHour      int
	DefaultMaxEmails int
	SendTimeout      time.Duration
	// CampaignScoped limits duplicate suppression to the same campaign id.
	CampaignScoped bool
}

type Manager struct {
	ledger    Ledger
	generator Generator
	read      RecipientReader
	opts      Options
	log       *zap.Logger

	progress *Progress

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns an idle manager. generator may be nil, in which case
// AI personalization requests fall back to templates.
func NewManager(ledger Ledger, generator Generator, opts Options, logger *zap.Logger) *Manager {
	if opts.RatePerHour <= 0 {
		opts.RatePerHour = 150
	}
	if opts.DefaultMaxEmails <= 0 {
		opts.DefaultMaxEmails = 30
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 60 * time.Second
	}

	m := &Manager{
		ledger:   ledger,
		read:     csvparser.ReadFile,
		opts:     opts,
		log:      logger.Named("worker"),
		progress: newProgress(),
	}
	// a typed nil pointer must not count as a configured generator
	if g, ok := generator.(*content.Generator); !ok || g != nil {
		m.generator = generator
	}
	return m
}

// Start launches a campaign and returns its id. The campaign outlives ctx;
// use Cancel or Shutdown to stop it.
func (m *Manager) Start(ctx context.Context, sender email.Sender, req models.CampaignRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.CampaignID == "" {
		req.CampaignID = uuid.NewString()
	}
	if !m.progress.begin(req.CampaignID) {
		return "", ErrCampaignRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	m.log.Info("campaign started",
		zap.String("campaign_id", req.CampaignID),
		zap.Bool("use_ai", req.UseAI),
	)

	go func() {
		defer close(done)
		defer cancel()
		m.run(runCtx, sender, req)
	}()

	return req.CampaignID, nil
}

// Cancel requests cancellation of the running campaign. The flag is seen at
// the next recipient boundary and the run context aborts an in-flight send
// or pacing wait.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.progress.requestCancel() {
		return ErrNoActiveCampaign
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.log.Info("campaign cancellation requested")
	return nil
}

// Wait blocks until the current campaign goroutine exits or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels a running campaign and waits for it to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.Cancel(); err != nil && !errors.Is(err, ErrNoActiveCampaign) {
		return err
	}
	return m.Wait(ctx)
}

func (m *Manager) Progress() models.ProgressState {
	return m.progress.Snapshot()
}

// Running reports whether a campaign is in progress.
func (m *Manager) Running() bool {
	return m.progress.Snapshot().Status == models.StatusRunning
}
