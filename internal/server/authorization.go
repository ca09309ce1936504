package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/adminwatch/internal/access"
	"github.com/smallbiznis/adminwatch/internal/authorization"
)

const contextScopeKey = "country_scope"

// authorizeAdminAction reloads the identity, checks the role policy and keeps
// the freshly computed country scope for the handler.
func (s *Server) authorizeAdminAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := requireAdmin(c)
		if !ok {
			return
		}
		identity, scope, err := s.access.ScopeFor(c.Request.Context(), adminID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), authorization.Actor{
			AdminID: identity.ID,
			Role:    string(identity.Role),
		}, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextScopeKey, scope)
		c.Next()
	}
}

func scopeFromContext(c *gin.Context) access.Scope {
	if value, ok := c.Get(contextScopeKey); ok {
		if scope, ok := value.(access.Scope); ok {
			return scope
		}
	}
	return access.Scope{}
}
