package interfaces

import (
	"context"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// UserRepository stores users. Email addresses are unique across all tenants.
type UserRepository interface {
	// Create stores a new user. Fails with ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// Get returns a user of the organization. A user of another organization is ErrNotFound.
	Get(ctx context.Context, orgID model.OrganizationID, id model.UserID) (*model.User, error)

	// GetByEmail looks a user up by normalized email, regardless of organization
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	List(ctx context.Context, orgID model.OrganizationID) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) (*model.User, error)
}
