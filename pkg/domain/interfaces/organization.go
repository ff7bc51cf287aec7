package interfaces

import (
	"context"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// OrganizationRepository stores tenants
type OrganizationRepository interface {
	// Create stores a new organization. Fails with ErrDuplicate when the name or slug is taken.
	Create(ctx context.Context, org *model.Organization) (*model.Organization, error)
	Get(ctx context.Context, id model.OrganizationID) (*model.Organization, error)
	Update(ctx context.Context, org *model.Organization) (*model.Organization, error)
}
