package identity

import (
	"context"
	"fmt"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/secondary"
)

// OperatorProvider resolves the CLI operator from configuration.
type OperatorProvider struct {
	actor access.Actor
}

var _ secondary.IdentityProvider = (*OperatorProvider)(nil)

// NewOperatorProvider validates the configured operator.
// An empty role defaults to operations, the role a local console normally runs as.
func NewOperatorProvider(name, role string, branches []string) (*OperatorProvider, error) {
	if role == "" {
		role = string(access.RoleOperations)
	}
	r, ok := access.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("unknown operator role %q", role)
	}
	if name == "" {
		name = "operator"
	}
	return &OperatorProvider{actor: access.Actor{ID: name, Name: name, Role: r, Branches: branches}}, nil
}

// CurrentActor implements secondary.IdentityProvider.
func (p *OperatorProvider) CurrentActor(ctx context.Context) (access.Actor, error) {
	return p.actor, nil
}
