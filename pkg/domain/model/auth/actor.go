package auth

import (
	"context"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// Actor is the authenticated principal performing an operation
type Actor struct {
	UserID         model.UserID         `json:"userId"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Role           types.Role           `json:"role"`
	OrganizationID model.OrganizationID `json:"organizationId"`
}

// HasRole reports whether the actor holds one of roles
func (a *Actor) HasRole(roles ...types.Role) bool {
	if a == nil {
		return false
	}
	return types.NewRoleSet(roles...).Contains(a.Role)
}

// NewActor builds an Actor from a stored user
func NewActor(u *model.User) *Actor {
	return &Actor{
		UserID:         u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}
}

// ClientInfo identifies the network client a request came from
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type ctxActorKey struct{}
type ctxClientKey struct{}

// ContextWithActor returns a new context with the actor
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey{}, actor)
}

// ActorFromContext retrieves the actor from context
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(ctxActorKey{}).(*Actor)
	return actor, ok && actor != nil
}

// ContextWithClientInfo returns a new context with client info
func ContextWithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ctxClientKey{}, info)
}

// ClientInfoFromContext retrieves client info from context. A zero value is returned when absent.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(ctxClientKey{}).(ClientInfo)
	return info
}
