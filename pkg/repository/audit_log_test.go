package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

func runAuditLogRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Append assigns id and timestamp", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := model.NewOrganizationID()

		gt.NoError(t, repo.AuditLog().Append(ctx, &model.AuditLogEntry{
			Action:         types.AuditActionCreate,
			Entity:         types.EntityIssue,
			EntityID:       "issue-1",
			OrganizationID: orgID,
			NewValue:       model.Snapshot{"title": "t"},
		}))

		entries, err := repo.AuditLog().ListByEntity(ctx, orgID, types.EntityIssue, "issue-1")
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].ID).NotEqual(model.AuditLogID(""))
		gt.Bool(t, entries[0].Timestamp.IsZero()).False()
		gt.Value(t, entries[0].NewValue["title"]).Equal(any("t"))
	})

	t.Run("re-appending an existing id fails and leaves the entry unchanged", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := model.NewOrganizationID()

		entry := &model.AuditLogEntry{
			ID:             model.NewAuditLogID(),
			Action:         types.AuditActionStatusChange,
			Entity:         types.EntityIssue,
			EntityID:       "issue-2",
			OrganizationID: orgID,
			NewValue:       model.Snapshot{"status": "Submitted"},
		}
		gt.NoError(t, repo.AuditLog().Append(ctx, entry))

		entry.NewValue["status"] = "Tampered"
		err := repo.AuditLog().Append(ctx, entry)
		gt.Bool(t, errors.Is(err, model.ErrAuditImmutable)).True()

		entries, err := repo.AuditLog().ListByEntity(ctx, orgID, types.EntityIssue, "issue-2")
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].NewValue["status"]).Equal(any("Submitted"))
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := model.NewOrganizationID()

		gt.NoError(t, repo.AuditLog().Append(ctx, &model.AuditLogEntry{
			Action: types.AuditActionUpdate, Entity: types.EntityWorkflow, EntityID: "wf",
			OrganizationID: orgID, NewValue: model.Snapshot{"name": "original"},
		}))

		entries, err := repo.AuditLog().ListByEntity(ctx, orgID, types.EntityWorkflow, "wf")
		gt.NoError(t, err).Required()
		entries[0].NewValue["name"] = "mutated"

		entries, err = repo.AuditLog().ListByEntity(ctx, orgID, types.EntityWorkflow, "wf")
		gt.NoError(t, err).Required()
		gt.Value(t, entries[0].NewValue["name"]).Equal(any("original"))
	})

	t.Run("Query filters, orders newest first and paginates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := model.NewOrganizationID()
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
		actor := model.NewUserID()

		for i := range 5 {
			action := types.AuditActionUpdate
			if i%2 == 0 {
				action = types.AuditActionCreate
			}
			gt.NoError(t, repo.AuditLog().Append(ctx, &model.AuditLogEntry{
				Action:         action,
				Entity:         types.EntityIssue,
				EntityID:       "issue-q",
				OrganizationID: orgID,
				PerformedBy:    actor,
				Timestamp:      base.Add(time.Duration(i) * time.Minute),
			}))
		}
		gt.NoError(t, repo.AuditLog().Append(ctx, &model.AuditLogEntry{
			Action: types.AuditActionCreate, Entity: types.EntityIssue, EntityID: "x",
			OrganizationID: model.NewOrganizationID(), Timestamp: base,
		}))

		entries, total, err := repo.AuditLog().Query(ctx, interfaces.AuditFilter{OrganizationID: orgID}, 1, 2)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(5)
		gt.Array(t, entries).Length(2)
		gt.Bool(t, entries[0].Timestamp.Equal(base.Add(4*time.Minute))).True()
		gt.Bool(t, entries[1].Timestamp.Equal(base.Add(3*time.Minute))).True()

		entries, total, err = repo.AuditLog().Query(ctx, interfaces.AuditFilter{
			OrganizationID: orgID,
			Action:         types.AuditActionCreate,
		}, 1, 10)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(3)
		gt.Array(t, entries).Length(3)

		from := base.Add(time.Minute)
		to := base.Add(3 * time.Minute)
		_, total, err = repo.AuditLog().Query(ctx, interfaces.AuditFilter{
			OrganizationID: orgID,
			PerformedBy:    actor,
			From:           &from,
			To:             &to,
		}, 1, 10)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(3)
	})
}

func TestMemoryAuditLogRepository(t *testing.T) {
	runAuditLogRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreAuditLogRepository(t *testing.T) {
	runAuditLogRepositoryTest(t, newFirestoreRepository)
}
