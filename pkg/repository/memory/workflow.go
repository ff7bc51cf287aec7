package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

type workflowRepository struct {
	mu        sync.RWMutex
	workflows map[model.OrganizationID]map[model.WorkflowID]*model.Workflow
}

func newWorkflowRepository() *workflowRepository {
	return &workflowRepository{
		workflows: make(map[model.OrganizationID]map[model.WorkflowID]*model.Workflow),
	}
}

func (r *workflowRepository) Put(ctx context.Context, wf *model.Workflow) (*model.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, exists := r.workflows[wf.OrganizationID]
	if !exists {
		org = make(map[model.WorkflowID]*model.Workflow)
		r.workflows[wf.OrganizationID] = org
	}

	now := time.Now().UTC()
	stored := wf.Copy()
	if stored.ID == "" {
		stored.ID = model.NewWorkflowID()
	}
	if existing, ok := org[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	// Clearing and setting happen under the same lock, so no reader sees two defaults.
	if stored.IsDefault {
		for id, other := range org {
			if id != stored.ID && other.IsDefault {
				other.IsDefault = false
				other.UpdatedAt = now
			}
		}
	}

	org[stored.ID] = stored
	return stored.Copy(), nil
}

func (r *workflowRepository) Get(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) (*model.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, exists := r.workflows[orgID][id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
	}
	return wf.Copy(), nil
}

func (r *workflowRepository) GetActiveDefault(ctx context.Context, orgID model.OrganizationID) (*model.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, wf := range r.workflows[orgID] {
		if wf.IsActiveDefault() {
			return wf.Copy(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "active default workflow not found", goerr.V("organization_id", orgID))
}

func (r *workflowRepository) List(ctx context.Context, orgID model.OrganizationID) ([]*model.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*model.Workflow, 0, len(r.workflows[orgID]))
	for _, wf := range r.workflows[orgID] {
		workflows = append(workflows, wf.Copy())
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})
	return workflows, nil
}

func (r *workflowRepository) Delete(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wf, exists := r.workflows[orgID][id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "workflow not found", goerr.V("id", id))
	}
	if wf.IsDefault {
		return goerr.Wrap(ErrConflict, "default workflow cannot be deleted", goerr.V("id", id))
	}
	delete(r.workflows[orgID], id)
	return nil
}
