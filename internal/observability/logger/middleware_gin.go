package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/sadaqah/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool

	// SlowRequest promotes successful requests slower than this to warn.
	// Zero disables the check.
	SlowRequest     time.Duration
	ErrorClassifier func(err error) (string, string)
}

// requestLine is what one request contributes to the "http_request" line.
type requestLine struct {
	route     string
	status    int
	elapsed   time.Duration
	errorType string
	slow      bool
}

// GinMiddleware tags the request context with a request id (and the donor,
// for /api/donors routes) and writes one log line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		if strings.HasPrefix(c.FullPath(), "/api/donors/") {
			if donorID := strings.TrimSpace(c.Param("id")); donorID != "" {
				ctx = obscontext.WithDonorID(ctx, donorID)
			}
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		line := requestLine{
			route:   c.FullPath(),
			status:  c.Writer.Status(),
			elapsed: time.Since(start),
		}
		if line.route == "" {
			line.route = "unknown"
		}
		line.slow = cfg.SlowRequest > 0 && line.elapsed > cfg.SlowRequest

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", line.route),
			zap.Int("status", line.status),
			zap.Int64("duration_ms", line.elapsed.Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if donorID := strings.TrimSpace(c.GetString("donor_id")); donorID != "" {
			fields = append(fields, zap.String("donor_id", donorID))
		}
		if reason := c.Writer.Header().Get("X-Rate-Limited-Reason"); reason != "" {
			fields = append(fields, zap.String("rate_limited_reason", reason))
		}
		if line.slow {
			fields = append(fields, zap.Bool("slow", true))
		}

		if lastErr := c.Errors.Last(); lastErr != nil {
			var errorCode string
			if cfg.ErrorClassifier != nil {
				line.errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", line.errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		logRequest(FromContext(c.Request.Context()), line, fields)
	}
}

// requestIDFor honours an inbound id so callers can correlate retries.
func requestIDFor(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetString("request_id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func logRequest(log *zap.Logger, line requestLine, fields []zap.Field) {
	if log == nil {
		return
	}
	if ce := log.Check(requestLevel(line), "http_request"); ce != nil {
		ce.Write(fields...)
	}
}

// requestLevel keeps probes and rejected donation payloads out of info
// logs; server failures are errors, slow requests warnings.
func requestLevel(line requestLine) zapcore.Level {
	switch {
	case isProbe(line.route):
		return zapcore.DebugLevel
	case line.status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case line.route == "/api/donations" && line.errorType == "validation_error":
		return zapcore.DebugLevel
	case line.slow:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func isProbe(route string) bool {
	switch route {
	case "/health", "/metrics":
		return true
	default:
		return false
	}
}
