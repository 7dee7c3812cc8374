package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func newTestGmail(t *testing.T, tokenURL string) (*Gmail, *MemoryTokenStore) {
	t.Helper()

	store := NewMemoryTokenStore()
	g, err := NewGmail("client-id", "client-secret", "http://localhost:5000/oauth2callback", store, zap.NewNop())
	require.NoError(t, err)
	if tokenURL != "" {
		g.cfg.Endpoint = oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}
	return g, store
}

func TestNewGmail_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewGmail("", "secret", "", NewMemoryTokenStore(), zap.NewNop())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	g, store := newTestGmail(t, "")

	raw, err := g.AuthCodeURL(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.send", q.Get("scope"))

	state := q.Get("state")
	require.NotEmpty(t, state)

	ok, err := store.ConsumeState(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExchange(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	g, _ := newTestGmail(t, srv.URL)

	assert.False(t, g.Connected(ctx))

	raw, err := g.AuthCodeURL(ctx)
	require.NoError(t, err)
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	require.NoError(t, g.Exchange(ctx, state, "the-code"))
	assert.True(t, g.Connected(ctx))

	ts, err := g.TokenSource(ctx)
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)

	// states are single use
	require.ErrorIs(t, g.Exchange(ctx, state, "the-code"), ErrInvalidState)

	require.NoError(t, g.Disconnect(ctx))
	assert.False(t, g.Connected(ctx))
}

func TestExchange_UnknownState(t *testing.T) {
	t.Parallel()

	g, _ := newTestGmail(t, "")
	require.ErrorIs(t, g.Exchange(context.Background(), "forged", "code"), ErrInvalidState)
}

func TestTokenSource_NotConnected(t *testing.T) {
	t.Parallel()

	g, _ := newTestGmail(t, "")
	_, err := g.TokenSource(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTokenSource_PersistsRefresh(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	g, store := newTestGmail(t, srv.URL)

	require.NoError(t, store.SaveToken(ctx, &oauth2.Token{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	ts, err := g.TokenSource(ctx)
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)

	saved, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-2", saved.AccessToken)
	assert.Equal(t, "rt-1", saved.RefreshToken)
}

func TestMemoryTokenStore_StateExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryTokenStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SaveState(ctx, "s1", time.Minute))
	now = now.Add(2 * time.Minute)

	ok, err := store.ConsumeState(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Token(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}
