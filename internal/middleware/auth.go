package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/homekeep/internal/auth"
)

// TokenVerifier turns a bearer token into the caller identity.
type TokenVerifier interface {
	Verify(token string) (auth.AuthContext, error)
}

// RequireBearer validates the Authorization header and populates AuthContext.
func RequireBearer(v TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="homekeep"`)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			ac, err := v.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", RealIP(r))
				w.Header().Set("WWW-Authenticate", `Bearer realm="homekeep", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
