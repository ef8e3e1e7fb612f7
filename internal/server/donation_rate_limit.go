package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sadaqah/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	"github.com/smallbiznis/sadaqah/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonDonorRate = "donor-rate"

type donorLimiter interface {
	Enabled() bool
	AllowDonor(ctx context.Context, donorID string) (*ratelimit.Result, error)
}

type donationRateLimitKey struct {
	UserID string `json:"user_id"`
}

// DonationRateLimit throttles donation intake per donor. Requests without a
// readable user_id pass through and fail validation in the handler.
func (s *Server) DonationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.donationLimiter == nil || !s.donationLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		donorID, err := readDonationRateLimitKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("donation rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}
		if donorID == "" {
			c.Next()
			return
		}

		res, err := s.donationLimiter.AllowDonor(ctx, donorID)
		if err != nil {
			logger.FromContext(ctx).Warn("donation rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyDonationRateLimit(c, res, s.obsMetrics)
			return
		}

		c.Next()
	}
}

func denyDonationRateLimit(c *gin.Context, res *ratelimit.Result, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)
	logger.FromContext(ctx).Warn("donation rate limit exceeded",
		zap.String("reason", rateLimitReasonDonorRate),
		zap.String("endpoint", endpoint),
	)
	metrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonDonorRate)

	retryAfter := 1
	if res != nil && res.RetryAfter > 0 {
		retryAfter = int(math.Ceil(res.RetryAfter.Seconds()))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonDonorRate)
	AbortWithError(c, ErrRateLimited)
}

func readDonationRateLimitKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload donationRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return strings.TrimSpace(payload.UserID), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
