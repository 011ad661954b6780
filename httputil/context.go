package httputil

import "context"

type contextKey string

// ContextKeyRequestID carries the request id assigned by RequestLogger
const ContextKeyRequestID contextKey = "request_id"

// RequestIDFromContext returns the request id stored by RequestLogger, or ""
func RequestIDFromContext(ctx context.Context) string {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	if !ok {
		return ""
	}

	return requestID
}
