package server

import (
	"context"
	"net/http"
	"strings"

	"salience/internal/logging"
	"salience/internal/store"
)

const tokenCookie = "salience_token"

type contextKey string

const userKey contextKey = "user"

// currentUser returns the authenticated user placed in the request context.
func currentUser(r *http.Request) *store.User {
	user, _ := r.Context().Value(userKey).(*store.User)
	return user
}

// bearerToken extracts the token from the Authorization header or the
// session cookie. The header wins when both are present.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// authenticated resolves the bearer token to an active user and stores it in
// the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		// Deactivated accounts lose access immediately, tokens notwithstanding.
		user, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "account unavailable")
			return
		}
		ctx := logging.ContextWithUserID(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userKey, user)))
	})
}

// requireRole layers a role gate over authentication.
func (s *Server) requireRole(role store.Role, next http.HandlerFunc) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if user := currentUser(r); user == nil || user.Role != role {
			s.writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
