package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/services"
)

var validate = validator.New()

type contextKey string

const (
	claimsContextKey  contextKey = "accessClaims"
	webUserContextKey contextKey = "webUserID"
)

// RequireAccessCredential authenticates agent calls with a bearer access
// credential. Expired and malformed tokens get distinct codes so the agent
// knows whether to refresh or give up and re-pair.
func RequireAccessCredential(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "token_missing", "missing bearer credential")
				return
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				writeServiceError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*services.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*services.AccessClaims)
	return claims, ok
}

// RequireWebUser guards the web-session routes. Session handling itself
// belongs to the surrounding web application; by the time a request reaches
// this core it carries the authenticated user id in X-User-ID.
func RequireWebUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session_required", "authenticated web session required")
			return
		}

		ctx := context.WithValue(r.Context(), webUserContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WebUserFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(webUserContextKey).(uuid.UUID)
	return userID, ok
}
