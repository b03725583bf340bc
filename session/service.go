package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

const (
	rowKeyPrefix  = "sess:"
	userKeyPrefix = "sess:user:"
	fpKeyPrefix   = "sess:fp:"
)

var (
	// ErrNotFound is returned when no session matches the lookup.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable indicates the session store is unreachable.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Revoker is the slice of the token service the session service needs:
// blocking a refresh-token fingerprint for the remainder of its life.
type Revoker interface {
	RevokeFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) error
}

// Service is the session bookkeeping service. It is independent of
// whether the owning refresh token is still valid; callers reconcile the
// two (revoking a session blocks its fingerprint via the Revoker).
type Service struct {
	redis   redis.UniversalClient
	revoker Revoker
	log     zerolog.Logger
}

// NewService creates a session service. The revoker is typically the
// token service; tests substitute a fake.
func NewService(redisClient redis.UniversalClient, revoker Revoker, log zerolog.Logger) *Service {
	return &Service{redis: redisClient, revoker: revoker, log: log}
}

func fingerprint(refreshID string) string {
	sum := sha256.Sum256([]byte(refreshID))
	return hex.EncodeToString(sum[:])
}

// Create persists a new session row for a freshly issued refresh token.
// expiresAt must be the expiry embedded in that token, so revocation TTL
// and row lifetime stay consistent.
func (s *Service) Create(ctx context.Context, userID, refreshID, userAgent, ip string, expiresAt time.Time) (*Session, error) {
	now := time.Now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil, fmt.Errorf("session expiry in the past")
	}

	sess := &Session{
		ID:           ksuid.New().String(),
		UserID:       userID,
		Fingerprint:  fingerprint(refreshID),
		Device:       ParseUserAgent(userAgent),
		IP:           ip,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		IsCurrent:    true,
	}

	encoded, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, rowKeyPrefix+sess.ID, encoded, ttl)
	pipe.SAdd(ctx, userKeyPrefix+userID, sess.ID)
	pipe.Set(ctx, fpKeyPrefix+sess.Fingerprint, sess.ID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return sess, nil
}

// List returns the user's unexpired sessions, most recently active
// first. It reads only; index reconciliation happens in SweepExpired.
func (s *Service) List(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if sess.Expired(now) {
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
	return sessions, nil
}

// Revoke deletes one session if it belongs to userID, blocking its
// fingerprint for the remainder of the session's stored lifetime first.
// Returns false without error when the session is missing or owned by
// someone else. When the remaining TTL is zero or negative there is
// nothing left to block and only the row is deleted.
func (s *Service) Revoke(ctx context.Context, sessionID, userID string) (bool, error) {
	sess, err := s.get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if sess.UserID != userID {
		return false, nil
	}

	if remaining := time.Until(sess.ExpiresAt); remaining > 0 {
		if err := s.revoker.RevokeFingerprint(ctx, sess.Fingerprint, remaining); err != nil {
			return false, err
		}
	}

	if err := s.delete(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeAll revokes every session belonging to userID except the one
// identified by excludeID (pass "" to revoke all). Returns the number of
// sessions removed. Password changes use the exclusion so the session
// that performed the change survives.
func (s *Service) RevokeAll(ctx context.Context, userID, excludeID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := 0
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		sess, err := s.get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return revoked, err
		}
		if sess.UserID != userID {
			continue
		}
		if remaining := time.Until(sess.ExpiresAt); remaining > 0 {
			if err := s.revoker.RevokeFingerprint(ctx, sess.Fingerprint, remaining); err != nil {
				return revoked, err
			}
		}
		if err := s.delete(ctx, sess); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// Touch updates last-activity for the session matching the refresh jti.
// It silently no-ops when no session matches — expected after expiry or
// revocation. Best-effort: callers should log failures, never fail on
// them.
func (s *Service) Touch(ctx context.Context, refreshID string) error {
	sess, err := s.FindByFingerprint(ctx, refreshID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	sess.LastActiveAt = time.Now()
	sess.IsCurrent = true
	return s.save(ctx, sess)
}

// FindByFingerprint resolves the session owning the given refresh jti.
func (s *Service) FindByFingerprint(ctx context.Context, refreshID string) (*Session, error) {
	id, err := s.redis.Get(ctx, fpKeyPrefix+fingerprint(refreshID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.get(ctx, id)
}

// Rekey moves a session row from a rotated-out refresh jti to its
// successor, keeping row lifetime aligned with the new token's expiry.
// Missing rows are a silent no-op, mirroring Touch.
func (s *Service) Rekey(ctx context.Context, oldRefreshID, newRefreshID string, expiresAt time.Time) error {
	sess, err := s.FindByFingerprint(ctx, oldRefreshID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	oldFP := sess.Fingerprint
	sess.Fingerprint = fingerprint(newRefreshID)
	sess.ExpiresAt = expiresAt
	sess.LastActiveAt = time.Now()

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	encoded, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, rowKeyPrefix+sess.ID, encoded, ttl)
	pipe.Del(ctx, fpKeyPrefix+oldFP)
	pipe.Set(ctx, fpKeyPrefix+sess.Fingerprint, sess.ID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SweepExpired reconciles the per-user indexes with the self-expiring
// rows, removing index entries whose row TTL has already fired. Intended
// for a schedule, not the request path. Returns the number of entries
// removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	swept := 0
	iter := s.redis.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		ids, err := s.redis.SMembers(ctx, setKey).Result()
		if err != nil {
			return swept, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		for _, id := range ids {
			exists, err := s.redis.Exists(ctx, rowKeyPrefix+id).Result()
			if err != nil {
				return swept, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if exists == 0 {
				if err := s.redis.SRem(ctx, setKey, id).Err(); err != nil {
					return swept, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
				s.log.Debug().Str("session_id", id).Msg("removed orphaned session index entry")
				swept++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return swept, nil
}

func (s *Service) get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, rowKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session row %s: %w", id, err)
	}
	return &sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	encoded, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, rowKeyPrefix+sess.ID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) delete(ctx context.Context, sess *Session) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, rowKeyPrefix+sess.ID)
	pipe.SRem(ctx, userKeyPrefix+sess.UserID, sess.ID)
	pipe.Del(ctx, fpKeyPrefix+sess.Fingerprint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
