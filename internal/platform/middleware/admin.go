package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdminToken guards administrative endpoints (revocation, corrections,
// sale confirmation). Only the bcrypt hash of the token is configured, so a
// leaked environment dump does not leak the credential itself.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if token == "" || tokenHash == "" {
				forbidden(w)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				logger.WarnContext(r.Context(), "forbidden - admin token mismatch",
					"request_id", GetRequestID(r.Context()),
				)
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}`))
}
