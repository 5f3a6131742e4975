// Package ctxutil provides context utilities that can be safely imported anywhere.
// It depends only on the pure access package to avoid import cycles.
package ctxutil

import (
	"context"

	"github.com/example/galley/internal/core/access"
)

// ActorKey is the context key for the resolved actor.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// WithActor returns a context with the actor embedded.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// ActorFromContext returns the actor from context, or the zero Actor if not set.
func ActorFromContext(ctx context.Context) access.Actor {
	if v, ok := ctx.Value(ActorKey{}).(access.Actor); ok {
		return v
	}
	return access.Actor{}
}

// ActorLabel returns the provenance label of the actor in context.
func ActorLabel(ctx context.Context) string {
	return ActorFromContext(ctx).Label()
}
