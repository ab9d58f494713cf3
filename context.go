package goSession

import "context"

type clientIPContextKey struct{}
type requestIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The controller
// copies it into audit events for the operation.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestID attaches a request identifier to ctx for audit correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(clientIPContextKey{}).(string)
	return v
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDContextKey{}).(string)
	return v
}

func requestMetadata(ctx context.Context) map[string]string {
	ip := clientIPFromContext(ctx)
	rid := requestIDFromContext(ctx)
	if ip == "" && rid == "" {
		return nil
	}
	md := make(map[string]string, 2)
	if ip != "" {
		md["client_ip"] = ip
	}
	if rid != "" {
		md["request_id"] = rid
	}
	return md
}
