package middleware

import (
	"context"
	"net/http"

	"animal-shelter/internal/platform/apperr"
	"animal-shelter/internal/platform/httpjson"
	"animal-shelter/internal/ports/auth"
	"animal-shelter/internal/ports/identity"
)

// Directory implementa identity.UserDirectory leyendo las claims del request.
type Directory struct{}

var _ identity.UserDirectory = Directory{}

func (Directory) CurrentUserID(ctx context.Context) (string, bool) {
	c, ok := GetClaims(ctx)
	if !ok {
		return "", false
	}
	return c.UserID, true
}

func (Directory) CurrentUserRoles(ctx context.Context) []auth.Role {
	c, ok := GetClaims(ctx)
	if !ok {
		return nil
	}
	return c.Roles
}

// HasAnyRole: admin siempre pasa.
func HasAnyRole(ctx context.Context, roles ...auth.Role) bool {
	c, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	if c.HasAnyRole(auth.RoleAdmin) {
		return true
	}
	return c.HasAnyRole(roles...)
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClaims(r.Context()); !ok {
			httpjson.WriteError(w, apperr.New(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAnyRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyRole(r.Context(), roles...) {
				httpjson.WriteError(w, apperr.New(apperr.CodeForbidden, "forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
