package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
)

func (s *Server) AppendPoolEntry(c *gin.Context) {
	var req pooldomain.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.poolSvc.Append(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPoolEntry(c *gin.Context) {
	resp, err := s.poolSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// MatchPoolEntry answers 409 when the entry is unknown or already claimed;
// neither case changes the ledger.
func (s *Server) MatchPoolEntry(c *gin.Context) {
	var req pooldomain.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	matched, err := s.poolSvc.Match(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.BusinessID, req.BusinessName)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if !matched {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"matched": matched})
}

func (s *Server) GetPoolSummary(c *gin.Context) {
	resp, err := s.poolSvc.Summary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPoolUserSummary(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	c.Set("donor_id", userID)

	resp, err := s.poolSvc.UserSummary(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPoolMatches(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.poolSvc.RecentMatches(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
