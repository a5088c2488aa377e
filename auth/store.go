// Package auth holds the bearer token the client attaches to outgoing
// requests and stream handshakes.
//
// Two scopes exist: durable stores survive restarts (FileStore, RedisStore)
// and session stores live as long as the process (MemoryStore). Chain reads
// them in order so a durable token wins over a session one.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/MailerSuite/Final-sub009/errors"
)

// Store persists a single bearer token.
type Store interface {
	// Token returns the stored token. ok is false when no token is present.
	Token(ctx context.Context) (token string, ok bool, err error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// BearerHeader formats token as an Authorization header value.
func BearerHeader(token string) string {
	return "Bearer " + token
}

// MemoryStore is a session-scoped store.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store pre-populated with token, which may be empty.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: strings.TrimSpace(token)}
}

func (s *MemoryStore) Token(context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != "", nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "auth", "SetToken", "token is required")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

// ChainStore consults several stores in precedence order.
type ChainStore struct {
	stores []Store
}

// Chain builds a ChainStore. Put durable stores first.
func Chain(stores ...Store) *ChainStore {
	filtered := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &ChainStore{stores: filtered}
}

// Token returns the first token found. A failing store is skipped only if a
// later store yields a token; otherwise its error is returned.
func (c *ChainStore) Token(ctx context.Context) (string, bool, error) {
	var firstErr error
	for _, s := range c.stores {
		token, ok, err := s.Token(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return token, true, nil
		}
	}
	return "", false, firstErr
}

// SetToken writes to the first store in the chain.
func (c *ChainStore) SetToken(ctx context.Context, token string) error {
	if len(c.stores) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "auth", "SetToken", "empty store chain")
	}
	return c.stores[0].SetToken(ctx, token)
}

// Clear removes the token from every store.
func (c *ChainStore) Clear(ctx context.Context) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
