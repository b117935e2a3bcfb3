package activecontext

import (
	"context"
	"net/http"
)

type ctxKey string

const storeKey ctxKey = "activecontext.store"

// WithStore returns a context carrying s. Outgoing backend requests built
// from this context are bound to s's active organization.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey, s)
}

// FromContext returns the Store carried by ctx, or nil.
func FromContext(ctx context.Context) *Store {
	if s, ok := ctx.Value(storeKey).(*Store); ok {
		return s
	}
	return nil
}

// FromRequest returns the Store attached to the request, or nil.
func FromRequest(r *http.Request) *Store {
	return FromContext(r.Context())
}

// WithoutStore returns a context that hides any Store carried by ctx, so
// requests built from it carry no organization scope.
func WithoutStore(ctx context.Context) context.Context {
	return context.WithValue(ctx, storeKey, (*Store)(nil))
}
