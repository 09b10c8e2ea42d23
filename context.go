package guildguard

import "context"

type clientIPContextKey struct{}
type reasonContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine copies
// it into audit records for every mutation and denial.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithReason attaches a human-supplied justification to ctx. It is
// recorded on audit events and stamped onto elevation sessions.
func WithReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, reasonContextKey{}, reason)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func reasonFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	reason, _ := ctx.Value(reasonContextKey{}).(string)
	return reason
}
