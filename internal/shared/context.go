package shared

import "context"

type actorContextKey struct{}

// Actor identifies the authenticated admin behind a request.
type Actor struct {
	ID       int64
	Username string
}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorID returns a pointer to the actor id, nil for anonymous requests.
func ActorID(ctx context.Context) *int64 {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	id := actor.ID
	return &id
}
