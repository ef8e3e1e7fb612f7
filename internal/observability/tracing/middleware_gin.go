package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/sadaqah/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per API request. Probes are not traced.
// Handlers may set "donor_id" on the gin context; it is copied onto the span.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("sadaqah/http")
	return func(c *gin.Context) {
		if isProbe(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withBaggage(ctx, "request_id", requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		if donorID := strings.TrimSpace(c.GetString("donor_id")); donorID != "" {
			attrs = append(attrs, attribute.String("sadaqah.donor_id", donorID))
		}
		if entryID := strings.TrimSpace(c.Param("id")); entryID != "" && strings.HasPrefix(route, "/api/pool/entries/") {
			attrs = append(attrs, attribute.String("sadaqah.pool_entry_id", entryID))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status == http.StatusTooManyRequests:
			span.AddEvent("rate_limited", trace.WithAttributes(
				attribute.String("reason", c.Writer.Header().Get("X-Rate-Limited-Reason")),
			))
		case status == http.StatusConflict && strings.HasSuffix(route, "/match"):
			span.AddEvent("match_rejected")
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func withBaggage(ctx context.Context, key, value string) context.Context {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

func isProbe(path string) bool {
	switch strings.TrimSpace(path) {
	case "/health", "/metrics":
		return true
	default:
		return false
	}
}
