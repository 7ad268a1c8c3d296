package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
	bearerPrefix          = "Bearer "
)

// BearerAuth admits requests carrying "Authorization: Bearer <apiKey>". A
// missing or non-bearer header gets 401 with a challenge, a wrong token 403.
func BearerAuth(apiKey string, metrics *Metrics) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(authorizationHeader)
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				reason := "missing"
				if header != "" {
					reason = "malformed"
				}
				hlog.FromRequest(r).Info().Str("reason", reason).Msg("auth rejected")
				metrics.authFailed(reason)
				w.Header().Set(wwwAuthenticateHeader, `Bearer realm="mcp"`)
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			token := strings.TrimSpace(header[len(bearerPrefix):])
			if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				hlog.FromRequest(r).Info().Str("reason", "invalid").Msg("auth rejected")
				metrics.authFailed("invalid")
				writeJSONError(w, http.StatusForbidden, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
