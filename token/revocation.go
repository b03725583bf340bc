package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedJTIPrefix = "revoked:jti:"
	revokedFPPrefix  = "revoked:fp:"
)

// revocationList is the TTL-backed blocklist of token unique ids.
// Entries expire with the token they block, so the list never needs
// sweeping.
type revocationList struct {
	redis redis.UniversalClient
}

// Revoke marks a jti as revoked for ttl. Repeat revocations overwrite the
// marker, extending it when the new TTL is longer; the operation is
// idempotent from the caller's point of view.
func (r *revocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, revokedJTIPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeFingerprint marks a jti fingerprint as revoked for ttl. This is a
// second blocklist namespace for callers that only hold the one-way hash
// of the id.
func (r *revocationList) RevokeFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, revokedFPPrefix+fingerprint, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the jti is blocked in either namespace.
func (r *revocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	hits, err := r.redis.Exists(ctx, revokedJTIPrefix+jti, revokedFPPrefix+Fingerprint(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return hits > 0, nil
}

// Claim atomically revokes a jti and reports whether this caller won the
// claim. A losing caller observes false with no error: the marker was
// already present. Rotation uses this to make refresh exchange
// exactly-once.
func (r *revocationList) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	ok, err := r.redis.SetNX(ctx, revokedJTIPrefix+jti, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
