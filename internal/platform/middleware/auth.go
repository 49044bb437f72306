package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKeyBrokerID struct{}

var ctxKeyBrokerID = contextKeyBrokerID{}

// GetAuthenticatedBrokerID retrieves the broker id set by RequireBrokerAuth.
func GetAuthenticatedBrokerID(ctx context.Context) string {
	id, ok := ctx.Value(ctxKeyBrokerID).(string)
	if !ok {
		return ""
	}
	return id
}

// brokerClaims are the claims the broker dashboard tokens carry. The subject
// is the broker id issued by the external identity system.
type brokerClaims struct {
	jwt.RegisteredClaims
}

// RequireBrokerAuth validates the dashboard-issued bearer token and stores the
// broker id in context. Standing lookups are broker-facing, never public.
func RequireBrokerAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			claims := &brokerClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(signingKey), nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				logger.WarnContext(r.Context(), "unauthorized - invalid broker token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyBrokerID, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
