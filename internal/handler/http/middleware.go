package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/rookgm/kopisort/internal/models"
)

type contextKey string

const (
	authPayloadKey contextKey = "auth_payload"
)

// TokenVerifier verifies bearer token
type TokenVerifier interface {
	VerifyToken(tokenString string) (*models.TokenPayload, error)
}

// AuthMiddleware gets the bearer token from the Authorization header and passes its payload to the context
func AuthMiddleware(tv TokenVerifier) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				respondFail(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			payload, err := tv.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				respondFail(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), authPayloadKey, payload)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects principals without role
func RequireRole(role models.Role) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := getAuthPayload(r.Context(), authPayloadKey)
			if !ok || payload == nil {
				respondFail(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if payload.Role != role {
				respondFail(w, http.StatusForbidden, "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getAuthPayload extracts authorization token payload from context
func getAuthPayload(ctx context.Context, key contextKey) (*models.TokenPayload, bool) {
	payload, ok := ctx.Value(key).(*models.TokenPayload)
	return payload, ok && payload != nil
}
