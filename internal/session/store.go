// Package session holds the authenticated identity of one client: the
// bearer token and the user profile, persisted under the "token" and
// "user" keys of a storage namespace.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
)

var ErrInvalidToken = errors.New("server returned an invalid token")

// Validator confirms a token with the server.
type Validator interface {
	ValidateToken(ctx context.Context, token string) error
}

// Store is safe for concurrent use. Until Validate has run once, Loading
// reports true and the store reports unauthenticated.
type Store struct {
	kv        storage.KV
	validator Validator
	logger    *log.Logger
	now       func() time.Time

	mu            sync.RWMutex
	token         string
	user          core.User
	authenticated bool

	gate      chan struct{}
	settled   atomic.Bool
	readyOnce sync.Once
	ready     chan struct{}
}

type Option func(*Store)

// WithClock replaces time.Now for the local expiry check.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(kv storage.KV, validator Validator, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		validator: validator,
		logger:    logger.WithComponent(log.ComponentSession),
		now:       time.Now,
		gate:      make(chan struct{}, 1),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login persists token and user and marks the session authenticated. The
// stored user carries a copy of the token.
func (s *Store) Login(ctx context.Context, token string, user core.User) error {
	if !LooksLikeToken(token) {
		return ErrInvalidToken
	}
	user.Token = token
	blob, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyUser, string(blob)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	s.mu.Lock()
	s.token, s.user, s.authenticated = token, user, true
	s.mu.Unlock()
	s.markReady()

	s.logger.InfoContext(ctx, "Session started", log.FieldUserID, user.ID)
	return nil
}

// Logout clears persisted and in-memory state. It is idempotent; the
// in-memory state is cleared even when storage fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasAuth := s.authenticated
	s.token, s.user, s.authenticated = "", core.User{}, false
	s.mu.Unlock()
	s.markReady()

	if err := s.kv.Delete(ctx, storage.KeyToken, storage.KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if wasAuth {
		s.logger.InfoContext(ctx, "Session ended")
	}
	return nil
}

// Validate rehydrates the session from storage and confirms the token with
// the server. Once a call has settled the session, later calls return
// immediately; concurrent callers wait for the one in progress. Every
// failure ends in a logged-out session, except a cancelled ctx, which
// leaves the session undetermined for the next caller to validate.
func (s *Store) Validate(ctx context.Context) error {
	if s.settled.Load() {
		return nil
	}
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.gate }()
	if s.settled.Load() {
		return nil
	}

	err := s.validate(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.markReady()
	return err
}

func (s *Store) validate(ctx context.Context) error {
	token, ok, err := s.kv.Get(ctx, storage.KeyToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read stored token", log.FieldError, err)
		return s.drop(ctx)
	}
	if !ok || token == "" {
		return nil
	}

	if exp, ok := TokenExpiry(token); ok && !s.now().Before(exp) {
		s.logger.InfoContext(ctx, "Stored token expired", "expired_at", exp)
		return s.drop(ctx)
	}

	if err := s.validator.ValidateToken(ctx, token); err != nil {
		if ctx.Err() != nil {
			s.logger.DebugContext(ctx, "Token validation abandoned", log.FieldError, err)
			return ctx.Err()
		}
		s.logger.WarnContext(ctx, "Token validation failed", log.FieldError, err)
		return s.drop(ctx)
	}

	user := core.User{}
	blob, ok, err := s.kv.Get(ctx, storage.KeyUser)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read stored user", log.FieldError, err)
		return s.drop(ctx)
	}
	if ok {
		if err := json.Unmarshal([]byte(blob), &user); err != nil {
			s.logger.WarnContext(ctx, "Stored user is malformed", log.FieldError, err)
			return s.drop(ctx)
		}
	}
	if user.Token == "" {
		user.Token = token
	}

	s.mu.Lock()
	s.token, s.user, s.authenticated = token, user, true
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Session restored", log.FieldUserID, user.ID)
	return nil
}

// drop logs the session out unless ctx was cancelled, in which case the
// stored session is left for a later validation.
func (s *Store) drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Logout(ctx)
}

func (s *Store) markReady() {
	s.settled.Store(true)
	s.readyOnce.Do(func() { close(s.ready) })
}

// Wait blocks until the first validation or login has settled the session.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loading reports whether the session is still undetermined.
func (s *Store) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Store) User() core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
