package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	authcore "github.com/nearbyhub/authcore"
	"github.com/nearbyhub/authcore/token"
)

// AccessTokenCookie is the cookie checked when no Authorization header
// is present.
const AccessTokenCookie = "access_token"

// TokenVerifier is the slice of the token service the gates need.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenStr string, expected token.Kind) (*token.Claims, error)
}

// UserLoader resolves the token subject to a live account record.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*authcore.User, error)
}

// Identity is the authenticated principal attached to the request
// context by RequireAuth and OptionalAuth.
type Identity struct {
	UserID  string
	Email   string
	Role    authcore.Role
	Status  authcore.AccountStatus
	TokenID string
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by the auth gates.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok
}

// Guard holds the collaborators shared by the auth gates.
type Guard struct {
	tokens TokenVerifier
	users  UserLoader
	log    zerolog.Logger
}

// NewGuard creates a guard around the token verifier and user store.
func NewGuard(tokens TokenVerifier, users UserLoader, log zerolog.Logger) *Guard {
	return &Guard{tokens: tokens, users: users, log: log}
}

// RequireAuth rejects requests that do not carry a valid access token
// for an active account. Credential failures map to 401 in a fixed
// priority order: missing token, invalid token, unknown user, then
// status-specific messages for suspended, deleted, and pending
// accounts. Infrastructure faults (revocation store or user store
// unreachable) are not credential failures and map to 503, so a
// degraded backend never tells clients their credentials are bad.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, errMsg, status := g.authenticate(r)
		if identity == nil {
			writeError(w, status, errMsg)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth runs the same checks as RequireAuth but continues
// unauthenticated on every failure path, including infrastructure
// faults. Endpoints behind it must never block on auth ambiguity.
func (g *Guard) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _, _ := g.authenticate(r)
		if identity == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate runs the shared extraction and validation pipeline.
// Returns a nil identity with the error message and status code to use
// when rejection is wanted.
func (g *Guard) authenticate(r *http.Request) (*Identity, string, int) {
	tokenStr, ok := extractToken(r)
	if !ok {
		return nil, "authentication required", http.StatusUnauthorized
	}

	claims, err := g.tokens.Verify(r.Context(), tokenStr, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrStoreUnavailable) {
			g.log.Error().Err(err).Msg("token verification degraded")
			return nil, "authentication temporarily unavailable", http.StatusServiceUnavailable
		}
		return nil, "invalid or expired token", http.StatusUnauthorized
	}

	user, err := g.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if !errors.Is(err, authcore.ErrUserNotFound) {
			g.log.Error().Err(err).Msg("user lookup failed during auth")
			return nil, "authentication temporarily unavailable", http.StatusServiceUnavailable
		}
		return nil, "user not found", http.StatusUnauthorized
	}

	switch user.Status {
	case authcore.StatusSuspended:
		return nil, "account suspended", http.StatusUnauthorized
	case authcore.StatusDeleted:
		return nil, "account deleted", http.StatusUnauthorized
	case authcore.StatusPending:
		return nil, "please verify your email address", http.StatusUnauthorized
	}

	return &Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Status:  user.Status,
		TokenID: claims.ID,
	}, "", 0
}

// extractToken reads the Authorization Bearer value, falling back to the
// access_token cookie.
func extractToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearer) {
		if tok := auth[len(bearer):]; tok != "" {
			return tok, true
		}
		return "", false
	}

	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
