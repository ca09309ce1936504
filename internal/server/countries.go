package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type selectCountryRequest struct {
	Country string `json:"country"`
}

func (s *Server) ListCountries(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}

	view, err := s.access.Countries(c.Request.Context(), adminID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view.Countries,
		"scope": gin.H{
			"is_restricted": view.Scope.IsRestricted,
			"selectable":    view.Scope.Selectable,
		},
		"selection": view.Selection,
	})
}

func (s *Server) SelectCountry(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req selectCountryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.access.Select(c.Request.Context(), adminID, req.Country)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
