package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
)

func (s *Server) GetTierTable(c *gin.Context) {
	kind, err := tierdomain.ParseKind(strings.ToLower(strings.TrimSpace(c.Param("kind"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	table, err := s.tierSvc.Table(kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"kind":  table.Kind,
		"tiers": table.Tiers,
	}})
}

func (s *Server) GetTierStanding(c *gin.Context) {
	kind, err := tierdomain.ParseKind(strings.ToLower(strings.TrimSpace(c.Param("kind"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	points, err := parseOptionalInt64(c.Query("points"))
	if err != nil || points == nil {
		AbortWithError(c, newValidationError("points", "invalid_points", "points must be a non-negative integer"))
		return
	}

	resp, err := s.tierSvc.Standing(kind, *points)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
