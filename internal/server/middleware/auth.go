// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// principalKey is the context key for storing the authenticated caller.
const principalKey ContextKey = "principal"

// Roles carried in the token.
const (
	RoleClient    = "client"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
)

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (Principal, error)
}

// Principal is the authenticated caller extracted from token claims.
type Principal interface {
	GetUserID() uuid.UUID
	GetRole() string
}

type principal struct {
	userID uuid.UUID
	role   string
}

func (p principal) GetUserID() uuid.UUID { return p.userID }
func (p principal) GetRole() string      { return p.role }

// AuthMiddleware creates middleware that validates JWT tokens and adds the caller to request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			p := principal{userID: claims.GetUserID(), role: claims.GetRole()}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p.userID, p.role)))
		})
	}
}

// RequireRole rejects callers whose role is not one of roles with 403.
// It must run after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := r.Context().Value(principalKey).(Principal)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, p.GetRole()) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CronSecret guards internal trigger endpoints with a shared secret header.
// An empty secret disables the endpoint entirely.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Cron-Secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns ctx carrying an authenticated caller. Used by the
// middleware and by handler tests.
func WithPrincipal(ctx context.Context, userID uuid.UUID, role string) context.Context {
	return context.WithValue(ctx, principalKey, Principal(principal{userID: userID, role: role}))
}

// GetPrincipal extracts the authenticated caller from the request context.
func GetPrincipal(r *http.Request) (Principal, error) {
	p, ok := r.Context().Value(principalKey).(Principal)
	if !ok {
		return nil, fmt.Errorf("principal not found in request context")
	}
	return p, nil
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	p, err := GetPrincipal(r)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user ID not found in request context")
	}
	return p.GetUserID(), nil
}
