package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the operator session in the request context.
// The session middleware installs it; page handlers and the upstream client
// read it back out.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the operator session. It returns nil outside
// the session middleware, which every caller must tolerate.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
