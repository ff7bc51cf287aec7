package interfaces

import (
	"context"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// WorkflowRepository stores workflow definitions
type WorkflowRepository interface {
	// Put creates or replaces a workflow. When the workflow is default, every other
	// workflow of the same organization loses its default flag atomically with the write.
	Put(ctx context.Context, wf *model.Workflow) (*model.Workflow, error)

	Get(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) (*model.Workflow, error)

	// GetActiveDefault returns the workflow with isDefault and isActive set, or ErrNotFound
	GetActiveDefault(ctx context.Context, orgID model.OrganizationID) (*model.Workflow, error)

	List(ctx context.Context, orgID model.OrganizationID) ([]*model.Workflow, error)

	// Delete removes a workflow. A workflow that is default at the time of the
	// delete is kept and ErrConflict is returned.
	Delete(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) error
}
