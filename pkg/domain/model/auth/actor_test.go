package auth_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

func TestActorContext(t *testing.T) {
	t.Run("actor round trips through context", func(t *testing.T) {
		actor := auth.NewActor(&model.User{
			ID:             model.NewUserID(),
			OrganizationID: model.NewOrganizationID(),
			Name:           "Alice",
			Role:           types.RoleReviewer,
		})
		ctx := auth.ContextWithActor(context.Background(), actor)

		got, ok := auth.ActorFromContext(ctx)
		gt.B(t, ok).True()
		gt.V(t, got.UserID).Equal(actor.UserID)
		gt.V(t, got.Role).Equal(types.RoleReviewer)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, ok := auth.ActorFromContext(context.Background())
		gt.B(t, ok).False()
	})

	t.Run("client info defaults to zero value", func(t *testing.T) {
		info := auth.ClientInfoFromContext(context.Background())
		gt.V(t, info.IPAddress).Equal("")

		ctx := auth.ContextWithClientInfo(context.Background(), auth.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "curl"})
		info = auth.ClientInfoFromContext(ctx)
		gt.V(t, info.IPAddress).Equal("10.0.0.1")
		gt.V(t, info.UserAgent).Equal("curl")
	})
}

func TestActorHasRole(t *testing.T) {
	actor := &auth.Actor{Role: types.RoleManager}
	gt.B(t, actor.HasRole(types.RoleAdmin, types.RoleManager)).True()
	gt.B(t, actor.HasRole(types.RoleAdmin)).False()

	var nilActor *auth.Actor
	gt.B(t, nilActor.HasRole(types.RoleAdmin)).False()
}
