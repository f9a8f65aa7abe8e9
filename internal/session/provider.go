// Package session holds the current signed token for each principal session.
//
// The token cell is the one piece of shared mutable state in the engine:
// multiple call sites read it, and the provider (or an operator tool)
// replaces it whenever a refresh lands. No caller may cache a token beyond a
// single read; every authorization check re-derives its claims from a fresh
// read so stale tokens never back an access decision.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession indicates that no token is held for the session.
var ErrNoSession = errors.New("session: no active token")

// TokenSource supplies the currently active signed token for one principal
// session. Implementations must return the freshest token they hold on every
// call.
type TokenSource interface {
	CurrentToken(ctx context.Context) (string, error)
}

// SourceFunc adapts a plain function to a TokenSource.
type SourceFunc func(ctx context.Context) (string, error)

// CurrentToken implements TokenSource.
func (f SourceFunc) CurrentToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// RedisTokenStore keeps the current token for each session in Redis, so every
// read observes whatever the most recent refresh wrote.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenStore constructs a store with the given token lifetime.
func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl}
}

// Put replaces the session's current token. Called by the refresh path each
// time the provider issues a new token.
func (s *RedisTokenStore) Put(ctx context.Context, sessionID, signedToken string) error {
	if sessionID == "" {
		return errors.New("session: session id required")
	}
	if err := s.client.Set(ctx, s.key(sessionID), signedToken, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: store token: %w", err)
	}
	return nil
}

// Current returns the session's current token, or ErrNoSession when the
// session holds none.
func (s *RedisTokenStore) Current(ctx context.Context, sessionID string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("session: read token: %w", err)
	}
	return raw, nil
}

// Drop removes the session's token, ending the session.
func (s *RedisTokenStore) Drop(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: drop token: %w", err)
	}
	return nil
}

// For binds the store to a single session, yielding a TokenSource for the
// components that only ever see one principal.
func (s *RedisTokenStore) For(sessionID string) TokenSource {
	return SourceFunc(func(ctx context.Context) (string, error) {
		return s.Current(ctx, sessionID)
	})
}

func (s *RedisTokenStore) key(sessionID string) string {
	return "authz:token:" + sessionID
}
