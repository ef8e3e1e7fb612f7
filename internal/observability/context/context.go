package context

import "context"

type requestIDKey struct{}
type donorIDKey struct{}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDonorID stores the donor a request acts for, when known.
func WithDonorID(ctx context.Context, donorID string) context.Context {
	if donorID == "" {
		return ctx
	}
	return context.WithValue(ctx, donorIDKey{}, donorID)
}

func DonorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(donorIDKey{}).(string); ok {
		return v
	}
	return ""
}
