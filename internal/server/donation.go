package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	"github.com/smallbiznis/sadaqah/pkg/db/pagination"
)

func (s *Server) RecordDonation(c *gin.Context) {
	var req donationdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.UserName = strings.TrimSpace(req.UserName)
	req.Currency = strings.TrimSpace(req.Currency)
	c.Set("donor_id", req.UserID)

	resp, err := s.donationSvc.RecordDonation(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetDonorStanding(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	c.Set("donor_id", userID)

	resp, err := s.donationSvc.Standing(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDonorDonations(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	// limit is accepted as an alias of page_size
	if limit := strings.TrimSpace(c.Query("limit")); limit != "" && page.PageSize == 0 {
		size, err := parseLimit(limit)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		page.PageSize = size
	}

	userID := strings.TrimSpace(c.Param("id"))
	c.Set("donor_id", userID)

	resp, err := s.donationSvc.History(c.Request.Context(), donationdomain.HistoryRequest{
		UserID:     userID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Donations, "page_info": resp.PageInfo})
}

func (s *Server) GetLeaderboard(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.donationSvc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
