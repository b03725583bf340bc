package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	authcore "github.com/nearbyhub/authcore"
	"github.com/nearbyhub/authcore/token"
)

type fakeVerifier struct {
	claims map[string]*token.Claims
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, tokenStr string, expected token.Kind) (*token.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	claims, ok := f.claims[tokenStr]
	if !ok || claims.Kind != expected {
		return nil, token.ErrInvalid
	}
	return claims, nil
}

type fakeUsers struct {
	users map[string]*authcore.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*authcore.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return u, nil
}

func activeClaims(tokenStr, userID string) map[string]*token.Claims {
	return map[string]*token.Claims{
		tokenStr: {
			Kind: token.KindAccess,
			Role: "community",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: userID,
				ID:      "jti-" + userID,
			},
		},
	}
}

func newTestGuard(status authcore.AccountStatus) (*Guard, string) {
	const tokenStr = "good-token"
	verifier := &fakeVerifier{claims: activeClaims(tokenStr, "user-1")}
	users := &fakeUsers{users: map[string]*authcore.User{
		"user-1": {
			ID:     "user-1",
			Email:  "alice@example.com",
			Role:   authcore.RoleCommunity,
			Status: status,
		},
	}}
	return NewGuard(verifier, users, zerolog.Nop()), tokenStr
}

func echoIdentity(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(identity)
	})
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response body not JSON: %v", err)
	}
	return body["error"]
}

func TestRequireAuthMissingToken(t *testing.T) {
	guard, _ := newTestGuard(authcore.StatusActive)
	handler := guard.RequireAuth(echoIdentity(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "authentication required" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	guard, _ := newTestGuard(authcore.StatusActive)
	handler := guard.RequireAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid or expired token" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRequireAuthUnknownUser(t *testing.T) {
	verifier := &fakeVerifier{claims: activeClaims("tok", "ghost")}
	guard := NewGuard(verifier, &fakeUsers{users: map[string]*authcore.User{}}, zerolog.Nop())
	handler := guard.RequireAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "user not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRequireAuthStatusMessages(t *testing.T) {
	cases := []struct {
		status authcore.AccountStatus
		want   string
	}{
		{authcore.StatusSuspended, "account suspended"},
		{authcore.StatusDeleted, "account deleted"},
		{authcore.StatusPending, "please verify your email address"},
	}

	for _, tc := range cases {
		guard, tok := newTestGuard(tc.status)
		handler := guard.RequireAuth(echoIdentity(t))

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status %s: expected 401, got %d", tc.status, rec.Code)
		}
		if msg := errorMessage(t, rec); msg != tc.want {
			t.Fatalf("status %s: expected %q, got %q", tc.status, tc.want, msg)
		}
	}
}

func TestRequireAuthSuccessViaHeader(t *testing.T) {
	guard, tok := newTestGuard(authcore.StatusActive)
	handler := guard.RequireAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var identity Identity
	if err := json.NewDecoder(rec.Body).Decode(&identity); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity.UserID != "user-1" || identity.Email != "alice@example.com" {
		t.Fatalf("identity mismatch: %+v", identity)
	}
	if identity.TokenID != "jti-user-1" {
		t.Fatalf("token id must be attached, got %q", identity.TokenID)
	}
}

func TestRequireAuthCookieFallback(t *testing.T) {
	guard, tok := newTestGuard(authcore.StatusActive)
	handler := guard.RequireAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tok})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 via cookie, got %d", rec.Code)
	}
}

func TestRequireAuthHeaderOutranksCookie(t *testing.T) {
	guard, _ := newTestGuard(authcore.StatusActive)
	handler := guard.RequireAuth(echoIdentity(t))

	// A present but malformed header must not fall through to the
	// cookie.
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer ")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOptionalAuthFallsThrough(t *testing.T) {
	guard, _ := newTestGuard(authcore.StatusSuspended)
	handler := guard.OptionalAuth(echoIdentity(t))

	// No token, invalid token, and a non-active user all continue
	// unauthenticated.
	for _, setup := range []func(*http.Request){
		func(*http.Request) {},
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer bogus") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-token") },
	} {
		req := httptest.NewRequest("GET", "/feed", nil)
		setup(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("optional auth must continue unauthenticated, got %d", rec.Code)
		}
	}
}

func TestOptionalAuthAttachesIdentity(t *testing.T) {
	guard, tok := newTestGuard(authcore.StatusActive)
	handler := guard.OptionalAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected identity passthrough, got %d", rec.Code)
	}
}

func TestOptionalAuthStoreFaultFallsThrough(t *testing.T) {
	verifier := &fakeVerifier{err: token.ErrStoreUnavailable}
	guard := NewGuard(verifier, &fakeUsers{}, zerolog.Nop())
	handler := guard.OptionalAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/feed", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("infrastructure faults must not block optional auth, got %d", rec.Code)
	}
}

func TestRequireAuthStoreFaultIsNotACredentialFailure(t *testing.T) {
	// A degraded backend must surface as 503, never as one of the
	// credential 401 bodies.
	cases := []struct {
		name  string
		guard *Guard
	}{
		{
			name:  "revocation store down",
			guard: NewGuard(&fakeVerifier{err: token.ErrStoreUnavailable}, &fakeUsers{}, zerolog.Nop()),
		},
		{
			name: "user store down",
			guard: NewGuard(
				&fakeVerifier{claims: activeClaims("good-token", "user-1")},
				&fakeUsers{err: errors.New("connection refused")},
				zerolog.Nop(),
			),
		},
	}

	for _, tc := range cases {
		handler := tc.guard.RequireAuth(echoIdentity(t))

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", tc.name, rec.Code)
		}
		if msg := errorMessage(t, rec); msg != "authentication temporarily unavailable" {
			t.Fatalf("%s: unexpected message %q", tc.name, msg)
		}
	}
}

func TestOptionalAuthUserStoreFaultFallsThrough(t *testing.T) {
	guard := NewGuard(
		&fakeVerifier{claims: activeClaims("good-token", "user-1")},
		&fakeUsers{err: errors.New("connection refused")},
		zerolog.Nop(),
	)
	handler := guard.OptionalAuth(echoIdentity(t))

	req := httptest.NewRequest("GET", "/feed", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("infrastructure faults must not block optional auth, got %d", rec.Code)
	}
}

func withIdentity(r *http.Request, identity *Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(authcore.RoleAdmin, authcore.RoleSuperAdmin)(okHandler())

	req := withIdentity(httptest.NewRequest("GET", "/admin", nil), &Identity{
		UserID: "user-1",
		Role:   authcore.RoleCommunity,
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("community role must be forbidden, got %d", rec.Code)
	}

	req = withIdentity(httptest.NewRequest("GET", "/admin", nil), &Identity{
		UserID: "user-2",
		Role:   authcore.RoleAdmin,
	})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin must pass, got %d", rec.Code)
	}

	// Unauthenticated requests get 401, not 403.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing identity must be 401, got %d", rec.Code)
	}
}

func TestRequireOwnershipOrAdmin(t *testing.T) {
	router := chi.NewRouter()
	router.With(RequireOwnershipOrAdmin("accountID")).Get("/accounts/{accountID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(path string, identity *Identity) int {
		req := httptest.NewRequest("GET", path, nil)
		if identity != nil {
			req = withIdentity(req, identity)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	owner := &Identity{UserID: "user-1", Role: authcore.RoleCommunity}
	if code := serve("/accounts/user-1", owner); code != http.StatusOK {
		t.Fatalf("owner must pass, got %d", code)
	}
	if code := serve("/accounts/user-2", owner); code != http.StatusForbidden {
		t.Fatalf("non-owner must be forbidden, got %d", code)
	}

	admin := &Identity{UserID: "admin-1", Role: authcore.RoleAdmin}
	if code := serve("/accounts/user-2", admin); code != http.StatusOK {
		t.Fatalf("admin bypass must pass, got %d", code)
	}
	super := &Identity{UserID: "super-1", Role: authcore.RoleSuperAdmin}
	if code := serve("/accounts/user-2", super); code != http.StatusOK {
		t.Fatalf("super admin bypass must pass, got %d", code)
	}

	if code := serve("/accounts/user-1", nil); code != http.StatusUnauthorized {
		t.Fatalf("missing identity must be 401, got %d", code)
	}
}

func TestRequireOwnershipUserIDFallback(t *testing.T) {
	router := chi.NewRouter()
	router.With(RequireOwnershipOrAdmin("accountID")).Get("/users/{userID}/sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	owner := &Identity{UserID: "user-1", Role: authcore.RoleCommunity}
	req := withIdentity(httptest.NewRequest("GET", "/users/user-1/sessions", nil), owner)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("userID parameter fallback must pass, got %d", rec.Code)
	}
}

func TestExtractTokenBearerParsing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, ok := extractToken(req); ok {
		t.Fatal("non-bearer schemes must not produce a token")
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	tok, ok := extractToken(req)
	if !ok || tok != "abc.def.ghi" {
		t.Fatalf("bearer parsing: got %q ok=%v", tok, ok)
	}

	if strings.Contains(tok, " ") {
		t.Fatal("token must not contain the scheme prefix")
	}
}
