package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenStore keeps pending OAuth states and the connected account's token.
type TokenStore interface {
	SaveState(ctx context.Context, state string, ttl time.Duration) error
	// ConsumeState reports whether state was pending and removes it.
	ConsumeState(ctx context.Context, state string) (bool, error)
	SaveToken(ctx context.Context, tok *oauth2.Token) error
	// Token returns ErrNotAuthenticated when nothing has been saved.
	Token(ctx context.Context) (*oauth2.Token, error)
	DeleteToken(ctx context.Context) error
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	token  *oauth2.Token
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{states: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryTokenStore) SaveState(_ context.Context, state string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for s, exp := range m.states {
		if now.After(exp) {
			delete(m.states, s)
		}
	}
	m.states[state] = now.Add(ttl)
	return nil
}

func (m *MemoryTokenStore) ConsumeState(_ context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.states[state]
	if !ok {
		return false, nil
	}
	delete(m.states, state)
	return !m.now().After(exp), nil
}

func (m *MemoryTokenStore) SaveToken(_ context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tok
	m.token = &cp
	return nil
}

func (m *MemoryTokenStore) Token(_ context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil {
		return nil, ErrNotAuthenticated
	}
	cp := *m.token
	return &cp, nil
}

func (m *MemoryTokenStore) DeleteToken(_ context.Context) error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return nil
}

const (
	redisStatePrefix = "outreach:oauth:state:"
	redisTokenKey    = "outreach:oauth:gmail_token"
)

// RedisTokenStore shares OAuth state across server instances.
type RedisTokenStore struct {
	client redis.UniversalClient
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (r *RedisTokenStore) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisStatePrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	err := r.client.GetDel(ctx, redisStatePrefix+state).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
	return true, nil
}

func (r *RedisTokenStore) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := r.client.Set(ctx, redisTokenKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) Token(ctx context.Context) (*oauth2.Token, error) {
	raw, err := r.client.Get(ctx, redisTokenKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotAuthenticated
	case err != nil:
		return nil, fmt.Errorf("load token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

func (r *RedisTokenStore) DeleteToken(ctx context.Context) error {
	if err := r.client.Del(ctx, redisTokenKey).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
