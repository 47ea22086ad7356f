package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// RequireRole allows only users whose role is listed. It must run after JWTMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			utils.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}
		if !allowed[user.Role] {
			utils.Error(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user from context.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SetCurrentUser stores user in context the way JWTMiddleware does.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(ctxUser, user)
	c.Set(ctxUserID, user.ID.Hex())
	c.Set(ctxOwnerID, user.OwnerID.Hex())
	c.Set(ctxRole, string(user.Role))
}
