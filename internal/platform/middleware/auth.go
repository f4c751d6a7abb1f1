package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "bazaar/pkg/domain"
	"bazaar/pkg/requestcontext"
)

// AdminClaims are the claims the admin surface expects in a bearer token.
// Override carries the binary elevated capability: reopening permanently
// closed applications requires it.
type AdminClaims struct {
	Name     string `json:"name"`
	Override bool   `json:"override"`
	jwt.RegisteredClaims
}

// RequireAdmin validates the bearer token, resolves the admin actor, and
// injects it into the request context. Requests without a valid token are
// rejected before any handler runs.
func RequireAdmin(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w, "bearer token required")
				return
			}

			claims := &AdminClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid {
				logger.WarnContext(r.Context(), "admin token rejected",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err,
				)
				unauthorized(w, "invalid or expired token")
				return
			}

			adminID, err := id.ParseAdminID(claims.Subject)
			if err != nil {
				unauthorized(w, "token subject is not a valid admin id")
				return
			}

			ctx := requestcontext.WithActor(r.Context(), requestcontext.AdminActor{
				ID:          adminID,
				Name:        claims.Name,
				CanOverride: claims.Override,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWebhookSecret authenticates provider callbacks with a shared secret
// header, compared in constant time.
func RequireWebhookSecret(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Webhook-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				logger.WarnContext(r.Context(), "webhook secret mismatch",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w, "webhook secret required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
