package token

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nearbyhub/authcore/internal"
)

// SigningMethod selects the JWT signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrInvalid is the collapsed failure for malformed, expired,
	// wrong-kind, and revoked tokens. It is the expected negative
	// outcome, not an exceptional one.
	ErrInvalid = errors.New("invalid token")
	// ErrStoreUnavailable indicates the revocation store is unreachable.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrReuseDetected is returned by Rotate when another rotation
	// already claimed the token. It matches ErrInvalid under errors.Is,
	// so callers that do not care see the usual collapsed failure.
	ErrReuseDetected = fmt.Errorf("%w: refresh token already rotated", ErrInvalid)
)

// Config holds token lifetimes and signing material.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration

	AccessTTL          time.Duration // default 15m
	RefreshTTL         time.Duration // default 7d
	ExtendedRefreshTTL time.Duration // "remember me", default 30d
}

// DefaultConfig returns the platform token lifetimes with signing
// material left for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		SigningMethod:      MethodHS256,
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         7 * 24 * time.Hour,
		ExtendedRefreshTTL: 30 * 24 * time.Hour,
	}
}

// Service issues and validates the platform's tokens. Instances are
// immutable after construction and safe for concurrent use.
type Service struct {
	config      Config
	revocations *revocationList
}

// RefreshToken is the result of issuing a refresh token. The jti and
// plaintext expiry are returned so the caller can create the matching
// session row; the session's expiry must equal ExpiresAt or revocation
// TTLs and row lifetime drift apart.
type RefreshToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// NewService validates cfg and returns a Service using redisClient for
// the revocation blocklist.
func NewService(cfg Config, redisClient redis.UniversalClient) (*Service, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.ExtendedRefreshTTL < cfg.RefreshTTL {
		return nil, errors.New("extended refresh TTL below standard TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}

	return &Service{
		config:      cfg,
		revocations: &revocationList{redis: redisClient},
	}, nil
}

// IssueAccess creates an access token for the subject with a fresh jti.
// No state is written; the token is self-contained.
func (s *Service) IssueAccess(userID, role, email string) (string, error) {
	claims := Claims{
		Kind:  KindAccess,
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.config.Issuer,
		},
	}
	return s.sign(claims)
}

// IssueRefresh creates a refresh token for the subject. When extended is
// true the extended ("remember me") lifetime applies. The jti and expiry
// are returned for session bookkeeping.
func (s *Service) IssueRefresh(userID string, extended bool) (RefreshToken, error) {
	ttl := s.config.RefreshTTL
	if extended {
		ttl = s.config.ExtendedRefreshTTL
	}

	jti := uuid.NewString()
	expiresAt := time.Now().Add(ttl)
	claims := Claims{
		Kind:     KindRefresh,
		Extended: extended,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.config.Issuer,
		},
	}

	signed, err := s.sign(claims)
	if err != nil {
		return RefreshToken{}, err
	}

	return RefreshToken{Token: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// Verify checks signature and expiry locally, rejects a kind mismatch,
// then consults the revocation blocklist. It never mutates state.
// Returns ErrInvalid for every credential failure and ErrStoreUnavailable
// when the blocklist cannot be reached.
func (s *Service) Verify(ctx context.Context, tokenStr string, expected Kind) (*Claims, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, ErrInvalid
	}

	switch claims.Kind {
	case KindAccess, KindRefresh:
		if claims.Kind != expected {
			return nil, ErrInvalid
		}
	default:
		return nil, ErrInvalid
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalid
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalid
	}

	return claims, nil
}

// Revoke idempotently blocks a jti for ttl. The TTL must be at least the
// remaining validity of the token being revoked: a shorter marker expires
// first and the token becomes valid again. This is a correctness
// contract, not an optimization.
func (s *Service) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.revocations.Revoke(ctx, jti, ttl)
}

// RevokeFingerprint blocks a jti fingerprint for ttl. Used by the session
// service, which stores only the one-way hash of the refresh jti.
func (s *Service) RevokeFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) error {
	return s.revocations.RevokeFingerprint(ctx, fingerprint, ttl)
}

// Rotate exchanges a refresh token for a successor with the same
// remember-me lifetime, read from the old token's extended marker. The
// old jti is claimed atomically before the new token is issued, so two
// concurrent rotations of the same token cannot both succeed: the loser
// gets ErrReuseDetected. The claim TTL is the maximum configured refresh
// lifetime, since the original issuance lifetime is not recoverable
// here.
func (s *Service) Rotate(ctx context.Context, oldToken string) (RefreshToken, error) {
	claims, err := s.Verify(ctx, oldToken, KindRefresh)
	if err != nil {
		return RefreshToken{}, err
	}

	won, err := s.revocations.Claim(ctx, claims.ID, s.config.ExtendedRefreshTTL)
	if err != nil {
		return RefreshToken{}, err
	}
	if !won {
		return RefreshToken{}, ErrReuseDetected
	}

	return s.IssueRefresh(claims.Subject, claims.Extended)
}

// IssueOneTime returns a 256-bit random hex token for email verification
// and password reset flows. The value is never signed; validity rests on
// store-side TTL and single-use consumption.
func (s *Service) IssueOneTime() (string, error) {
	return internal.NewOneTimeToken()
}

// AccessTTL exposes the configured access lifetime for cookie Max-Age.
func (s *Service) AccessTTL() time.Duration { return s.config.AccessTTL }

// RefreshTTL exposes the refresh lifetime for the given remember-me mode.
func (s *Service) RefreshTTL(extended bool) time.Duration {
	if extended {
		return s.config.ExtendedRefreshTTL
	}
	return s.config.RefreshTTL
}

func (s *Service) sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(s.method(), claims)
	key, err := s.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

func (s *Service) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.verifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (s *Service) method() jwt.SigningMethod {
	switch s.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (s *Service) signKey() (interface{}, error) {
	switch s.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(s.config.PrivateKey)
	default:
		return s.config.PrivateKey, nil
	}
}

func (s *Service) verifyKey() (interface{}, error) {
	switch s.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(s.config.PublicKey)
	default:
		return s.config.PrivateKey, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
