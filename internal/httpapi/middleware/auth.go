package middleware

import (
	"net/http"
	"strings"
)

// Keys holds the two API-key tiers. Public keys read targets and alerts and
// run one-off checks; admin keys additionally mutate targets and drive the
// alert lifecycle. Empty tiers disable enforcement for local development.
type Keys struct {
	Public []string
	Admin  []string
}

// presentedKey extracts the caller's key from either a bearer Authorization
// header or the X-API-Key header.
func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func (k Keys) isPublic(key string) bool { return contains(k.Public, key) }
func (k Keys) isAdmin(key string) bool  { return contains(k.Admin, key) }

func contains(set []string, key string) bool {
	if key == "" {
		return false
	}
	for _, s := range set {
		if s == key {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// RequireAny admits requests carrying a key from either tier. With no keys
// configured it admits everything.
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	enforced := len(keys.Public) > 0 || len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enforced {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			if keys.isPublic(key) || keys.isAdmin(key) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
		})
	}
}

// RequireAdmin admits only admin-tier keys; a valid public key is still
// forbidden here. With no admin keys configured it admits everything.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	enforced := len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enforced {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.isAdmin(presentedKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusForbidden, `{"error":"forbidden"}`)
		})
	}
}
