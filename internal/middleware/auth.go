package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/httputil"
)

// AuthMiddleware authenticates every request with a bearer token and
// stores the resolved user id on the request context. Requests without
// a valid token receive a 401 problem response.
func AuthMiddleware(verifier auth.TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only the API surface requires a token; /health stays open
			// for load balancer probes.
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, userID))
		})
	}
}

// bearerToken pulls the token from the Authorization header, falling
// back to the access_token query parameter. EventSource cannot set
// headers, so the stream endpoint authenticates through the query
// string.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):]), true
	}

	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, true
	}

	return "", false
}
