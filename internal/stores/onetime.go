package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verifyKeyPrefix = "verify:"
	resetKeyPrefix  = "reset:"
)

var (
	// ErrNotFound is returned when a one-time record is absent, expired,
	// or already consumed.
	ErrNotFound = errors.New("one-time record not found")
	// ErrUnavailable indicates the backing store is unreachable.
	ErrUnavailable = errors.New("one-time store unavailable")
)

// OneTimeStore persists single-use email tokens in Redis. Records carry
// no structure beyond their value; validity is enforced entirely by TTL
// and by atomic consumption (GETDEL), which guarantees single use even
// under concurrent verification attempts.
type OneTimeStore struct {
	redis redis.UniversalClient
}

// NewOneTimeStore creates a store backed by the given Redis client.
func NewOneTimeStore(redisClient redis.UniversalClient) *OneTimeStore {
	return &OneTimeStore{redis: redisClient}
}

func verifyKey(userID, token string) string {
	return verifyKeyPrefix + userID + ":" + token
}

func resetKey(token string) string {
	return resetKeyPrefix + token
}

// SaveVerification stores an email-verification token scoped to a user.
// The value carries the email address being verified, so the same record
// shape serves both initial verification and pending-email changes.
func (s *OneTimeStore) SaveVerification(ctx context.Context, userID, token, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, verifyKey(userID, token), email, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeVerification atomically fetches and deletes a verification
// token, returning the email it was issued for.
func (s *OneTimeStore) ConsumeVerification(ctx context.Context, userID, token string) (string, error) {
	email, err := s.redis.GetDel(ctx, verifyKey(userID, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return email, nil
}

// SaveReset stores a password-reset token. The token alone is the key
// and the value is the owning user id: a direct reverse index, so reset
// lookup is O(1) regardless of how many tokens are outstanding.
func (s *OneTimeStore) SaveReset(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, resetKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeReset atomically fetches and deletes a reset token, returning
// the user id it belongs to.
func (s *OneTimeStore) ConsumeReset(ctx context.Context, token string) (string, error) {
	userID, err := s.redis.GetDel(ctx, resetKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return userID, nil
}
