package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const userContextKey contextKey = "user"

// Authenticate verifies an HS256 bearer token from the Authorization header and
// stores its claims in the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return authenticate([]byte(secret), bearerToken)
}

// AuthenticateWebsocket is Authenticate for websocket handshakes. Browsers
// cannot set headers on the upgrade request, so the token query parameter is
// accepted when no Authorization header is sent.
func AuthenticateWebsocket(secret string) func(http.Handler) http.Handler {
	return authenticate([]byte(secret), func(r *http.Request) string {
		if r.Header.Get("Authorization") != "" {
			return bearerToken(r)
		}
		return r.URL.Query().Get("token")
	})
}

func authenticate(key []byte, tokenFrom func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFrom(r)
			if raw == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			claims, err := parseToken(raw, key)
			if err != nil {
				writeUnauthorized(w, "invalid or expired authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func parseToken(raw string, key []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// WithClaims returns a context carrying the given claims, as Authenticate would.
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\n\t\"error\": %q\n}\n", message)
}
