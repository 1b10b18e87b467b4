package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Keys holds the API keys. Public keys may read check results; admin keys
// may also replace DYNAMIC host sources.
type Keys struct {
	Public []string
	Admin  []string
}

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireAny admits a public or an admin key. With no keys configured every
// request passes.
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	if len(keys.Public) == 0 && len(keys.Admin) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			if hasKey(key, keys.Public) || hasKey(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin admits admin keys only: 401 without a key, 403 with a
// non-admin one. With no admin keys configured every request passes.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	if len(keys.Admin) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			switch {
			case hasKey(key, keys.Admin):
				next.ServeHTTP(w, r)
			case key == "":
				writeError(w, http.StatusUnauthorized, "unauthorized")
			default:
				writeError(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
