package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	healthdomain "github.com/smallbiznis/adminwatch/internal/health/domain"
)

// ListCountryHealth returns struggling countries within the caller's scope,
// most severe first. ?country= narrows the list to one accessible country.
func (s *Server) ListCountryHealth(c *gin.Context) {
	scope := scopeFromContext(c)
	countries := scope.Accessible
	if requested := strings.ToUpper(strings.TrimSpace(c.Query("country"))); requested != "" && requested != "ALL" {
		countries = nil
		for _, code := range scope.Accessible {
			if code == requested {
				countries = []string{code}
				break
			}
		}
	}

	statuses, err := s.healthSvc.ListStruggling(c.Request.Context(), countries)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if statuses == nil {
		statuses = []healthdomain.Status{}
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}
