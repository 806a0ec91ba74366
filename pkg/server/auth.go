package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// tokenAuth guards the API with static tokens. Tokens travel either as a
// bearer token in the Authorization header or in the X-Api-Key header.
type tokenAuth struct {
	tokens []string
	logger *slog.Logger
}

func newTokenAuth(tokens []string) *tokenAuth {
	if len(tokens) == 0 {
		return nil
	}
	return &tokenAuth{
		tokens: tokens,
		logger: slog.Default().With("component", "server"),
	}
}

// wrap rejects requests that carry no valid token.
func (a *tokenAuth) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			a.logger.Warn("request without API token",
				"remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API token")
			return
		}
		if !a.valid(token) {
			a.logger.Warn("request with invalid API token",
				"remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *tokenAuth) valid(token string) bool {
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func extractToken(r *http.Request) string {
	if value := r.Header.Get("Authorization"); value != "" {
		if rest, ok := strings.CutPrefix(value, "Bearer "); ok {
			return rest
		}
	}
	return r.Header.Get("X-Api-Key")
}
