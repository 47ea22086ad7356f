package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

const (
	ctxUser    = "user"
	ctxUserID  = "user_id"
	ctxOwnerID = "owner_id"
	ctxRole    = "role"
)

// Authenticator resolves a bearer token to an active user.
// *service.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// JWTMiddleware authenticates requests with bearer tokens.
type JWTMiddleware struct {
	auth        Authenticator
	rateLimiter *InvalidAuthRateLimiter
}

// NewJWTMiddleware constructs a JWTMiddleware. Repeated failures from one IP
// are answered with 429.
func NewJWTMiddleware(auth Authenticator, limiter *InvalidAuthRateLimiter) *JWTMiddleware {
	if limiter == nil {
		limiter = NewInvalidAuthRateLimiter(0, 0)
	}
	return &JWTMiddleware{auth: auth, rateLimiter: limiter}
}

// Handle requires an Authorization: Bearer header.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return m.handle(false)
}

// HandleStream also accepts ?token= for EventSource clients, which cannot set headers.
func (m *JWTMiddleware) HandleStream() gin.HandlerFunc {
	return m.handle(true)
}

func (m *JWTMiddleware) handle(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if m.rateLimiter.Blocked(ip) {
			utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
			c.Abort()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			m.reject(c, "UNAUTHORIZED", "Missing or invalid authorization header")
			return
		}

		user, err := m.auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, utils.ErrInactiveAccount):
			m.reject(c, "ACCOUNT_INACTIVE", "Account is inactive")
			return
		case err != nil:
			m.reject(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		SetCurrentUser(c, user)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, code, message string) {
	if !m.rateLimiter.Allow(c.ClientIP()) {
		utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}
	utils.Error(c, http.StatusUnauthorized, code, message)
	c.Abort()
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
