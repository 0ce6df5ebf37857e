// Package session provides Redis-backed session persistence for the cookie
// authentication gate. It owns the session record and its lifetime; it does not
// decide who may do what — that belongs to the services.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session exists for a token, either
// because it never existed or because it expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record bound to a cookie token.
type Session struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sessions in Redis with a sliding TTL.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store. ttl is the sliding expiration window; every
// Touch resets it.
func NewStore(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

// Create stores a new session bound to userID and returns its opaque token.
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	sess := Session{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(token), blob, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Get loads the session for token. Missing or expired tokens yield
// ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	blob, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Touch resets the session's TTL to the full sliding window.
func (s *Store) Touch(ctx context.Context, token string) error {
	ok, err := s.rdb.Expire(ctx, s.key(token), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Destroy removes the session for token. Destroying a token that does not
// exist is not an error; only store-level failures surface.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
