// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/tasknest/tasknest/internal/domain/auth"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore = (*MemorySessionStore)(nil)
	_ ports.AuthProvider = (*MockAuthProvider)(nil)
)

// MemorySessionStore is an in-memory ports.SessionStore for tests. It honors
// expiry the same way the Redis-backed store does: expired sessions are
// dropped on read.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.SessionData

	// Optional error injection.
	SaveErr   error
	GetErr    error
	DeleteErr error
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.SessionData)}
}

func (s *MemorySessionStore) Save(_ context.Context, sess domainauth.SessionData) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if sess.ID == "" {
		return apperrors.ValidationField("id", "session ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (domainauth.SessionData, error) {
	if s.GetErr != nil {
		return domainauth.SessionData{}, s.GetErr
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.Expired(time.Now()) {
		return domainauth.SessionData{}, apperrors.NotFound("session not found")
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports the number of stored sessions, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// MockAuthProvider simulates an IdP with deterministic state/nonce values.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	AuthURL         string
	DefaultIdentity domainauth.Identity

	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultIdentity: domainauth.Identity{
			Subject:   "mock-subject-1",
			Email:     "mock.user@example.com",
			Name:      "Mock User",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.callCount++
	state := fmt.Sprintf("state-%d", m.callCount)
	nonce := fmt.Sprintf("nonce-%d", m.callCount)
	return m.AuthURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.Identity{}, apperrors.ValidationField("code", "authorization code is required")
	}
	return m.DefaultIdentity, nil
}
