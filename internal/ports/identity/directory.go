package identity

import (
	"context"

	"animal-shelter/internal/ports/auth"
)

// UserDirectory resuelve quién hace la llamada actual.
// Los servicios de dominio nunca lo consultan: reciben el ID como parámetro.
type UserDirectory interface {
	CurrentUserID(ctx context.Context) (string, bool)
	CurrentUserRoles(ctx context.Context) []auth.Role
}
