// Package redis provides the Redis-backed session store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasknest/tasknest/internal/domain/auth"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// SessionStore stores sessions in Redis with TTL derived from each
// session's ExpiresAt, so Redis evicts what the application would reject
// anyway.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a session store with the default key prefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: "session:",
	}
}

// NewSessionStoreWithPrefix creates a session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

// Save writes a session. Sessions that are already expired are refused.
func (s *SessionStore) Save(ctx context.Context, sess auth.SessionData) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

// Get retrieves a session by ID. Missing and expired sessions map to a
// not-found error.
func (s *SessionStore) Get(ctx context.Context, id string) (auth.SessionData, error) {
	if id == "" {
		return auth.SessionData{}, apperrors.NotFound("session not found")
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.SessionData{}, apperrors.NotFound("session not found")
		}
		return auth.SessionData{}, fmt.Errorf("redis get: %w", err)
	}

	var sess auth.SessionData
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return auth.SessionData{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Redis TTL should have evicted this already; be defensive anyway.
	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return auth.SessionData{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return auth.SessionData{}, apperrors.NotFound("session not found")
	}

	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
