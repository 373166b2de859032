package auth

import "context"

type callerKey struct{}

// withCaller attaches the verified identity for the guarded handler.
func withCaller(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// Caller returns the identity the Guard verified for this request, or
// false when the route is unguarded.
func Caller(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(callerKey{}).(*Identity)
	return id, ok && id != nil
}

// CallerSubject returns the caller's subject, or "anonymous".
func CallerSubject(ctx context.Context) string {
	if id, ok := Caller(ctx); ok && id.Subject != "" {
		return id.Subject
	}
	return "anonymous"
}
