package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

type organizationRepository struct {
	mu   sync.RWMutex
	orgs map[model.OrganizationID]*model.Organization
}

func newOrganizationRepository() *organizationRepository {
	return &organizationRepository{
		orgs: make(map[model.OrganizationID]*model.Organization),
	}
}

func copyOrganization(o *model.Organization) *model.Organization {
	copied := *o
	return &copied
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.orgs {
		if existing.Name == org.Name || existing.Slug == org.Slug {
			return nil, goerr.Wrap(ErrDuplicate, "organization name already exists",
				goerr.V("name", org.Name), goerr.V("slug", org.Slug))
		}
	}

	now := time.Now().UTC()
	created := copyOrganization(org)
	if created.ID == "" {
		created.ID = model.NewOrganizationID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.orgs[created.ID] = created
	return copyOrganization(created), nil
}

func (r *organizationRepository) Get(ctx context.Context, id model.OrganizationID) (*model.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, exists := r.orgs[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "organization not found", goerr.V("id", id))
	}
	return copyOrganization(org), nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.orgs[org.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "organization not found", goerr.V("id", org.ID))
	}

	updated := copyOrganization(org)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.orgs[updated.ID] = updated
	return copyOrganization(updated), nil
}
