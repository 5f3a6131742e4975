package secondary

import (
	"context"

	"github.com/example/galley/internal/core/access"
)

// IdentityProvider defines the secondary port for resolving the current actor.
// HTTP requests resolve it from a bearer token; the CLI from operator config.
type IdentityProvider interface {
	// CurrentActor returns the identity and role of the caller.
	CurrentActor(ctx context.Context) (access.Actor, error)
}
