package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/apperror"
	"github.com/premiumpay/premium-pay-api/internal/response"
	"github.com/premiumpay/premium-pay-api/internal/utils"
)

// Context keys set by the session guard.
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

// SessionLookup returns the session id currently persisted for an account.
type SessionLookup interface {
	CurrentSession(ctx context.Context, role, userID string) (string, error)
}

type Auth struct {
	tokens   *utils.TokenService
	sessions SessionLookup
}

func NewAuth(tokens *utils.TokenService, sessions SessionLookup) *Auth {
	return &Auth{tokens: tokens, sessions: sessions}
}

// SessionGuard verifies the bearer token, requires the request's User-Agent
// to match the one the token was issued to, and requires the token to be the
// account's current session.
func (a *Auth) SessionGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, apperror.ErrNoToken)
			return
		}

		claims, err := a.tokens.Verify(tokenString)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken)
			return
		}

		if claims.Agent != c.GetHeader("User-Agent") {
			response.Error(c, apperror.ErrDeviceMismatch)
			return
		}

		current, err := a.sessions.CurrentSession(c.Request.Context(), claims.Role, claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if current != claims.ID {
			response.Error(c, apperror.ErrSessionSuperseded)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole lets the request through only when the caller's role claim is
// one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(UserRoleKey)
		if role == "" {
			response.Error(c, apperror.ErrNoToken)
			return
		}
		if !slices.Contains(roles, role) {
			response.Error(c, apperror.ErrForbidden)
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Other schemes and an empty token report false.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
