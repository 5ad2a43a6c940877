package middleware

import (
	"net/http"
	"strings"

	"github.com/remotehand/signaling-server-go/internal/audit"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// AdminAuthMiddleware guards the operator stats surface with HTTP basic
// auth. The username compares case-insensitively; the password checks
// against a bcrypt hash from config. An empty hash disables the surface
// entirely.
type AdminAuthMiddleware struct {
	username     string
	passwordHash string
}

func NewAdminAuthMiddleware(username, passwordHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{username: username, passwordHash: passwordHash}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok ||
			!strings.EqualFold(username, m.username) ||
			!util.CheckPasswordHash(password, m.passwordHash) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAdminLoginFailure})
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
