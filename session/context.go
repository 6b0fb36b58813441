package session

import "context"

type contextKey string

const clientIDKey contextKey = "client_id"

// WithClientID stamps the originating connection id onto the context so
// message handlers can tell who sent a request.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientIDFromContext returns the originating connection id, if any.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey).(string)
	return id, ok
}
