package api

import (
	"context"
	"net/http"

	"notely/internal/auth"
)

// TokenHeader carries the session token on every authenticated request.
const TokenHeader = "token"

type contextKey string

const sessionKey contextKey = "session"

type AuthMiddleware struct {
	manager *auth.Manager
}

func NewAuthMiddleware(manager *auth.Manager) *AuthMiddleware {
	return &AuthMiddleware{manager: manager}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.manager.Authenticate(r.Context(), r.Header.Get(TokenHeader))
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession returns the session attached by RequireAuth, or nil.
func GetSession(r *http.Request) *auth.Session {
	if v := r.Context().Value(sessionKey); v != nil {
		if session, ok := v.(*auth.Session); ok {
			return session
		}
	}
	return nil
}
