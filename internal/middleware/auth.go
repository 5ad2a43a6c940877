package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/audit"
	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/repository"
	"github.com/remotehand/signaling-server-go/internal/util"
)

type contextKey string

const UserContextKey contextKey = "user"

// GetUser returns the authenticated host user, or nil on anonymous requests.
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware resolves bearer tokens to host users. Tokens are stored
// as SHA-256 digests, so the lookup is a single indexed query.
type AuthMiddleware struct {
	userRepo repository.UserRepository
}

func NewAuthMiddleware(userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo}
}

// Handler rejects requests without a valid token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		user, ok := m.resolve(w, r, token)
		if !ok {
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves a token when one is present and otherwise passes the
// request through anonymously. Signaling routes use this: the same route
// group serves authenticated hosts and password-bearing clients, and each
// operation applies its own check.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, ok := m.resolve(w, r, token)
		if !ok {
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve looks the token up and writes the failure response itself, so
// both entry points fail identically.
func (m *AuthMiddleware) resolve(w http.ResponseWriter, r *http.Request, token string) (*model.User, bool) {
	tokenHash := util.HashToken(token)
	user, err := m.userRepo.FindByTokenHash(r.Context(), tokenHash)
	if err != nil {
		log.Error().Err(err).Msg("auth middleware: database error")
		writeError(w, apperrors.Database(err))
		return nil, false
	}
	if user == nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Invalid token",
		})
		return nil, false
	}
	return user, true
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
