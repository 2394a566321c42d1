// Package api provides the REST binding for the key registry and the JWT
// authentication middleware that resolves the acting identity.
package api

import (
	"context"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

type contextKey string

// actorContextKey is where middleware stores the authenticated actor.
const actorContextKey contextKey = "actor"

// ContextWithActor returns a context carrying the actor. Exposed for tests
// that simulate authentication.
func ContextWithActor(ctx context.Context, actor keyregistry.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor set by middleware, defaulting to the
// anonymous sentinel.
func ActorFromContext(ctx context.Context) keyregistry.Actor {
	if actor, ok := ctx.Value(actorContextKey).(keyregistry.Actor); ok {
		return actor
	}
	return keyregistry.Anonymous()
}
