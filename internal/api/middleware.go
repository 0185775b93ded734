package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"schoolhub/internal/auth"
	"schoolhub/internal/models"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionSource reports who is signed in on this device.
type SessionSource interface {
	CurrentUser(ctx context.Context) (*models.Profile, error)
}

// AuthMiddleware accepts a bearer token only while it belongs to the user
// currently signed in, so signing out revokes every token issued before.
type AuthMiddleware struct {
	jwtService *auth.JWTService
	sessions   SessionSource
}

func NewAuthMiddleware(jwtService *auth.JWTService, sessions SessionSource) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, sessions: sessions}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		userID, ok := m.authenticate(w, r, parts[1])
		if !ok {
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate validates token against the signing key and the current
// session. On failure it writes the response and returns false.
func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request, token string) (string, bool) {
	claims, err := m.jwtService.ValidateAccessToken(token)
	if err != nil {
		unauthorized(w, "Invalid or expired token")
		return "", false
	}

	current, err := m.sessions.CurrentUser(r.Context())
	if err != nil {
		slog.Error("error reading session", "component", "api", "error", err)
		internalError(w)
		return "", false
	}
	if current == nil || current.ID != claims.UserID {
		unauthorized(w, "Session is no longer active")
		return "", false
	}
	return claims.UserID, true
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
