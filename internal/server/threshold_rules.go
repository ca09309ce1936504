package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
)

type listThresholdRulesQuery struct {
	MetricType string `form:"metric_type"`
	ActiveOnly string `form:"active_only"`
}

type toggleThresholdRuleRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) ListThresholdRules(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}

	var query listThresholdRulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	activeOnly := false
	if raw := strings.TrimSpace(query.ActiveOnly); raw != "" {
		activeOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	rules, err := s.thresholdSvc.List(c.Request.Context(), adminID, thresholddomain.ListRulesRequest{
		MetricType: strings.TrimSpace(query.MetricType),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (s *Server) GetThresholdRule(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rule, err := s.thresholdSvc.Get(c.Request.Context(), adminID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) CreateThresholdRule(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req thresholddomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.thresholdSvc.Create(c.Request.Context(), adminID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rule})
}

func (s *Server) UpdateThresholdRule(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req thresholddomain.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.thresholdSvc.Update(c.Request.Context(), adminID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) ToggleThresholdRule(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req toggleThresholdRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, newValidationError("is_active", "is_active_required", "is_active is required"))
		return
	}

	rule, err := s.thresholdSvc.Toggle(c.Request.Context(), adminID, id, *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) DeleteThresholdRule(c *gin.Context) {
	adminID, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.thresholdSvc.Delete(c.Request.Context(), adminID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
