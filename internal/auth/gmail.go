// Package auth runs the Gmail OAuth consent flow and hands out token
// sources for the Gmail transport.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

var (
	ErrNotConfigured    = errors.New("auth: google oauth client not configured")
	ErrNotAuthenticated = errors.New("auth: gmail account not connected")
	ErrInvalidState     = errors.New("auth: invalid or expired oauth state")
)

const stateTTL = 10 * time.Minute

type Gmail struct {
	cfg   *oauth2.Config
	store TokenStore
	log   *zap.Logger
}

func NewGmail(clientID, clientSecret, redirectURL string, store TokenStore, logger *zap.Logger) (*Gmail, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrNotConfigured
	}

	return &Gmail{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		},
		store: store,
		log:   logger.Named("auth"),
	}, nil
}

// AuthCodeURL starts a consent flow. Offline access with a forced prompt
// makes Google return a refresh token every time.
func (g *Gmail) AuthCodeURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := g.store.SaveState(ctx, state, stateTTL); err != nil {
		return "", err
	}
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (g *Gmail) Exchange(ctx context.Context, state, code string) error {
	ok, err := g.store.ConsumeState(ctx, state)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := g.store.SaveToken(ctx, tok); err != nil {
		return err
	}

	g.log.Info("gmail account connected", zap.Bool("refresh_token", tok.RefreshToken != ""))
	return nil
}

// TokenSource refreshes the saved token as needed and persists refreshed tokens.
func (g *Gmail) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := g.store.Token(ctx)
	if err != nil {
		return nil, err
	}

	return &persistingSource{
		base:  g.cfg.TokenSource(context.WithoutCancel(ctx), tok),
		store: g.store,
		last:  tok.AccessToken,
		log:   g.log,
	}, nil
}

func (g *Gmail) Connected(ctx context.Context) bool {
	tok, err := g.store.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			g.log.Warn("token lookup failed", zap.Error(err))
		}
		return false
	}
	return tok.Valid() || tok.RefreshToken != ""
}

// Disconnect forgets the connected account. Campaigns already running keep
// the token source they were started with.
func (g *Gmail) Disconnect(ctx context.Context) error {
	if err := g.store.DeleteToken(ctx); err != nil {
		return err
	}
	g.log.Info("gmail account disconnected")
	return nil
}

type persistingSource struct {
	base  oauth2.TokenSource
	store TokenStore
	log   *zap.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.SaveToken(context.Background(), tok); err != nil {
			p.log.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}
	return tok, nil
}
