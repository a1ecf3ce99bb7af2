package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ActorID(ctx))

	ctx = ContextWithActor(ctx, Actor{ID: 7, Username: "admin"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", actor.Username)
	require.NotNil(t, ActorID(ctx))
	assert.Equal(t, int64(7), *ActorID(ctx))
}
