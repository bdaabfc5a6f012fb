// Package jwtauth implementa auth.AuthVerifier con JWT HS256 firmados por el IdP del refugio.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"animal-shelter/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenEmpty     = errors.New("token is empty")
	ErrNotConfigured  = errors.New("jwt verifier is not configured")
	ErrMissingSubject = errors.New("token has no subject")
)

// shelterClaims es el payload esperado. roles puede venir como lista.
type shelterClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier: issuer vacío => no se valida el emisor.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var parsed shelterClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}

	sub := strings.TrimSpace(parsed.Subject)
	if sub == "" {
		return auth.Claims{}, ErrMissingSubject
	}

	return auth.Claims{
		UserID: sub,
		Email:  strings.TrimSpace(parsed.Email),
		Roles:  auth.ParseRoles(strings.Join(parsed.Roles, ",")),
	}, nil
}

// Sign emite un token de prueba/desarrollo con los mismos claims que Verify espera.
func Sign(secret, issuer string, c auth.Claims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(c.UserID) == "" {
		return "", ErrMissingSubject
	}
	now := time.Now()
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, string(r))
	}

	claims := shelterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: c.Email,
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
