package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authcore "github.com/nearbyhub/authcore"
)

// RequireRole rejects with 403 unless the authenticated role is one of
// allowed. Must run after RequireAuth; a missing identity is rejected
// with 401.
func RequireRole(allowed ...authcore.Role) func(http.Handler) http.Handler {
	allowedSet := make(map[authcore.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if _, ok := allowedSet[identity.Role]; !ok {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnershipOrAdmin allows the request when the authenticated user
// id equals the named chi path parameter (falling back to "userID" when
// the named one is absent) or when the role is admin or super_admin.
// Must run after RequireAuth.
func RequireOwnershipOrAdmin(paramName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			owner := chi.URLParam(r, paramName)
			if owner == "" {
				owner = chi.URLParam(r, "userID")
			}

			if owner != "" && owner == identity.UserID {
				next.ServeHTTP(w, r)
				return
			}
			if identity.Role.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
