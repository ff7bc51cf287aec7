package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type workflowRepository struct {
	*base
}

func (r *workflowRepository) Put(ctx context.Context, wf *model.Workflow) (*model.Workflow, error) {
	stored := wf.Copy()
	if stored.ID == "" {
		stored.ID = model.NewWorkflowID()
	}

	col := r.collection(collectionWorkflows)
	ref := col.Doc(string(stored.ID))

	// Prior defaults are cleared in the same transaction that writes the new one.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		stored.CreatedAt = now
		stored.UpdatedAt = now

		doc, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing model.Workflow
			if err := doc.DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to decode workflow", goerr.V("id", stored.ID))
			}
			if existing.OrganizationID != stored.OrganizationID {
				return goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", stored.ID))
			}
			stored.CreatedAt = existing.CreatedAt
		case status.Code(err) == codes.NotFound:
		default:
			return goerr.Wrap(err, "failed to get workflow", goerr.V("id", stored.ID))
		}

		var priorDefaults []*firestore.DocumentSnapshot
		if stored.IsDefault {
			priorDefaults, err = tx.Documents(col.
				Where("OrganizationID", "==", string(stored.OrganizationID)).
				Where("IsDefault", "==", true)).GetAll()
			if err != nil {
				return goerr.Wrap(err, "failed to query default workflows")
			}
		}

		for _, prior := range priorDefaults {
			if prior.Ref.ID == string(stored.ID) {
				continue
			}
			if err := tx.Update(prior.Ref, []firestore.Update{
				{Path: "IsDefault", Value: false},
				{Path: "UpdatedAt", Value: now},
			}); err != nil {
				return goerr.Wrap(err, "failed to clear default workflow", goerr.V("id", prior.Ref.ID))
			}
		}

		return tx.Set(ref, stored)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to put workflow", goerr.V("id", stored.ID))
	}

	return stored, nil
}

func (r *workflowRepository) Get(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) (*model.Workflow, error) {
	doc, err := r.collection(collectionWorkflows).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get workflow", goerr.V("id", id))
	}

	var wf model.Workflow
	if err := doc.DataTo(&wf); err != nil {
		return nil, goerr.Wrap(err, "failed to decode workflow", goerr.V("id", id))
	}
	if wf.OrganizationID != orgID {
		return nil, goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
	}
	return &wf, nil
}

func (r *workflowRepository) GetActiveDefault(ctx context.Context, orgID model.OrganizationID) (*model.Workflow, error) {
	docs, err := r.collection(collectionWorkflows).
		Where("OrganizationID", "==", string(orgID)).
		Where("IsDefault", "==", true).
		Where("IsActive", "==", true).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query active default workflow", goerr.V("organization_id", orgID))
	}
	if len(docs) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "active default workflow not found", goerr.V("organization_id", orgID))
	}

	var wf model.Workflow
	if err := docs[0].DataTo(&wf); err != nil {
		return nil, goerr.Wrap(err, "failed to decode workflow", goerr.V("doc_id", docs[0].Ref.ID))
	}
	return &wf, nil
}

func (r *workflowRepository) List(ctx context.Context, orgID model.OrganizationID) ([]*model.Workflow, error) {
	iter := r.collection(collectionWorkflows).
		Where("OrganizationID", "==", string(orgID)).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	workflows := make([]*model.Workflow, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate workflows")
		}

		var wf model.Workflow
		if err := doc.DataTo(&wf); err != nil {
			return nil, goerr.Wrap(err, "failed to decode workflow", goerr.V("doc_id", doc.Ref.ID))
		}
		workflows = append(workflows, &wf)
	}

	return workflows, nil
}

func (r *workflowRepository) Delete(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) error {
	ref := r.collection(collectionWorkflows).Doc(string(id))

	// The default flag is checked in the transaction so a concurrent Put cannot
	// promote the workflow between the check and the delete.
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get workflow", goerr.V("id", id))
		}

		var wf model.Workflow
		if err := doc.DataTo(&wf); err != nil {
			return goerr.Wrap(err, "failed to decode workflow", goerr.V("id", id))
		}
		if wf.OrganizationID != orgID {
			return goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
		}
		if wf.IsDefault {
			return goerr.Wrap(ErrConflict, "default workflow cannot be deleted", goerr.V("id", id))
		}

		if err := tx.Delete(ref); err != nil {
			return goerr.Wrap(err, "failed to delete workflow", goerr.V("id", id))
		}
		return nil
	})
}
