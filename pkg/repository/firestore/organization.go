package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type organizationRepository struct {
	*base
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	now := time.Now().UTC()
	created := *org
	if created.ID == "" {
		created.ID = model.NewOrganizationID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	col := r.collection(collectionOrganizations)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		byName, err := tx.Documents(col.Where("Name", "==", created.Name).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check organization name")
		}
		bySlug, err := tx.Documents(col.Where("Slug", "==", created.Slug).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check organization slug")
		}
		if len(byName) > 0 || len(bySlug) > 0 {
			return goerr.Wrap(ErrDuplicate, "organization name already exists",
				goerr.V("name", created.Name), goerr.V("slug", created.Slug))
		}
		return tx.Create(col.Doc(string(created.ID)), &created)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create organization", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *organizationRepository) Get(ctx context.Context, id model.OrganizationID) (*model.Organization, error) {
	doc, err := r.collection(collectionOrganizations).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "organization not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get organization", goerr.V("id", id))
	}

	var org model.Organization
	if err := doc.DataTo(&org); err != nil {
		return nil, goerr.Wrap(err, "failed to decode organization", goerr.V("id", id))
	}
	return &org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	ref := r.collection(collectionOrganizations).Doc(string(org.ID))
	updated := *org

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "organization not found", goerr.V("id", org.ID))
			}
			return goerr.Wrap(err, "failed to get organization", goerr.V("id", org.ID))
		}
		var existing model.Organization
		if err := doc.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to decode organization", goerr.V("id", org.ID))
		}

		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, &updated)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update organization", goerr.V("id", org.ID))
	}

	return &updated, nil
}
