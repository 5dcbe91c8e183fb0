package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fogcast/fogcast/internal/api/models"
	"github.com/fogcast/fogcast/internal/auth"
)

// TokenAuthorizer validates bearer tokens against a required scope.
type TokenAuthorizer interface {
	Authorize(token, scope string) (*auth.Claims, error)
}

// subjectKey is the context key for the authenticated token subject.
type subjectKey struct{}

// RequireScope returns middleware that admits requests carrying a valid
// bearer token granting scope.
func RequireScope(authorizer TokenAuthorizer, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := authorizer.Authorize(token, scope)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrMissingScope):
					models.NewForbidden(GetRequestID(r.Context()), "token lacks scope "+scope).
						WithInstance(r.URL.Path).
						Write(w)
				default:
					writeUnauthorized(w, r, "invalid access token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token of a case-insensitive "Bearer" header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// writeUnauthorized writes the problem directly; the response package
// imports this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="fogcast"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// GetSubject returns the authenticated token subject, or "" when anonymous.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey{}).(string); ok {
		return sub
	}
	return ""
}
