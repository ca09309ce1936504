package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/adminwatch/internal/auth"
	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
)

const contextAdminIDKey = "admin_id"

// AdminAuthRequired verifies the bearer token and stores the admin id. Role and
// countries are always reloaded by the services, never read from the token.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := s.tokens.ParseAdminToken(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		adminID, err := claims.ParsedAdminID()
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAdminIDKey, adminID)
		ctx := obscontext.WithActor(c.Request.Context(), "admin", adminID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func adminIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextAdminIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok && id > 0
}

// requireAdmin returns the authenticated admin id or aborts with 401.
func requireAdmin(c *gin.Context) (snowflake.ID, bool) {
	id, ok := adminIDFromContext(c)
	if !ok {
		AbortWithError(c, auth.ErrMissingToken)
		return 0, false
	}
	return id, true
}
