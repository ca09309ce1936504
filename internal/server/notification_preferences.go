package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/adminwatch/internal/notification/domain"
)

func (s *Server) GetNotificationPreferences(c *gin.Context) {
	actorID, ok := requireAdmin(c)
	if !ok {
		return
	}
	adminID, err := parsePathID(c.Param("adminId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pref, err := s.notificationSvc.GetPreferences(c.Request.Context(), actorID, adminID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pref})
}

// UpdateNotificationPreferences requires the version last read; a stale
// version yields 409 and the client must re-read.
func (s *Server) UpdateNotificationPreferences(c *gin.Context) {
	actorID, ok := requireAdmin(c)
	if !ok {
		return
	}
	adminID, err := parsePathID(c.Param("adminId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req notificationdomain.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pref, err := s.notificationSvc.UpdatePreferences(c.Request.Context(), actorID, adminID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pref})
}
