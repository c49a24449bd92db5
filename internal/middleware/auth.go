package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/andriansyh/safesight/internal/domain/users"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityResolver turns a bearer session token into a validated principal.
// The interface exists so tests can substitute a fake provider.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (users.Identity, error)
}

// JWTResolver verifies HS256 session tokens issued by the identity provider
// and maps their claims onto a strict Identity. Untyped claims never leave
// this resolver.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(_ context.Context, tokenString string) (users.Identity, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !tok.Valid {
		return users.Identity{}, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return users.Identity{}, fmt.Errorf("unexpected claims type")
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return users.Identity{}, fmt.Errorf("session token missing subject")
	}

	// Name and email claims are provider-controlled free text headed for
	// the database. The role is matched exactly and stays untouched.
	return users.Identity{
		AuthID:    sub,
		Email:     SanitizeString(claimString(claims, "email")),
		FirstName: SanitizeString(claimString(claims, "first_name")),
		LastName:  SanitizeString(claimString(claims, "last_name")),
		Role:      claimString(claims, "role"),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Auth validates the Authorization bearer token and stores the resolved
// Identity in the request context.
func Auth(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			ident, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated principal
func IdentityFromContext(ctx context.Context) (users.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(users.Identity)
	return ident, ok
}

// RequireRole gates a route group on the provider-reported role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if ident.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
