package auth

import (
	"context"
	"strings"
)

// Role es el rol del usuario dentro del refugio.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
	RoleVet         Role = "vet"
	RoleVolunteer   Role = "volunteer"
	RoleAdopter     Role = "adopter"
)

// AuthVerifier valida un bearer token (JWT en prod) y devuelve sus claims.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Roles  []Role
}

func (c Claims) HasAnyRole(roles ...Role) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ParseRoles acepta "coordinator, vet" y descarta vacíos y duplicados.
func ParseRoles(raw string) []Role {
	out := make([]Role, 0)
	seen := map[Role]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		r := Role(strings.ToLower(strings.TrimSpace(p)))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
