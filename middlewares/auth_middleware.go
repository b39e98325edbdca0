package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/utils"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

// OptionalAuth reads a bearer token when one is sent and stores its user id
// under ContextUserID. Missing or invalid tokens are not rejected; handlers
// fall back to the explicit userId parameter.
func OptionalAuth(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !tokens.Enabled() || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		claims, err := tokens.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			utils.InfoLogger.Debugf("[auth] ignoring bearer on %s: %v", c.Request.URL.Path, err)
			c.Next()
			return
		}

		c.Set(ContextUserID, int64(claims.UserID))
		c.Set("email", claims.Email)
		c.Next()
	}
}
