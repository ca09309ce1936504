package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	gatewaydomain "github.com/smallbiznis/adminwatch/internal/gateway/domain"
	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
)

type adminActionRequest struct {
	Action       string   `json:"action"`
	TargetUserID string   `json:"target_user_id"`
	Reason       string   `json:"reason"`
	NewRole      string   `json:"new_role"`
	Countries    []string `json:"countries"`
}

func (s *Server) ExecuteAdminAction(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	target, err := parseOptionalSnowflakeID(req.TargetUserID)
	if err != nil || target == nil {
		AbortWithError(c, gatewaydomain.ErrTargetRequired)
		return
	}

	ctx := c.Request.Context()
	result, err := s.gateway.Execute(ctx, gatewaydomain.Command{
		ActorID:      adminID,
		Action:       gatewaydomain.Action(req.Action),
		TargetUserID: *target,
		Reason:       req.Reason,
		NewRole:      admindomain.AccountRole(req.NewRole),
		Countries:    req.Countries,
		Meta: gatewaydomain.RequestMeta{
			RequestID: obscontext.RequestIDFromContext(ctx),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
