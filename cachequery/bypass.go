package cachequery

import "context"

type bypassContextKey struct{}

// WithoutCache marks the context so executor reads skip the cache entirely
// for this call. Useful right after a write in the same request, where the
// asynchronous invalidation may not have landed yet.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassContextKey{}, true)
}

func bypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(bypassContextKey{}).(bool)
	return ok && v
}
