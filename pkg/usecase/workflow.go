package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/errutil"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
)

// WorkflowUseCase is the per-organization state machine governing issue status
type WorkflowUseCase struct {
	repo  interfaces.Repository
	audit *AuditUseCase
	cache *workflowCache
}

// NewWorkflowUseCase creates the workflow engine. A cacheTTL of 0 disables the active workflow cache.
func NewWorkflowUseCase(repo interfaces.Repository, audit *AuditUseCase, cacheTTL time.Duration) *WorkflowUseCase {
	return &WorkflowUseCase{
		repo:  repo,
		audit: audit,
		cache: newWorkflowCache(cacheTTL),
	}
}

// ResolveActiveWorkflow returns the organization's default and active workflow,
// or nil without error when there is none.
func (uc *WorkflowUseCase) ResolveActiveWorkflow(ctx context.Context, orgID model.OrganizationID) (*model.Workflow, error) {
	return uc.cache.get(ctx, orgID, func(ctx context.Context) (*model.Workflow, error) {
		wf, err := uc.repo.Workflow().GetActiveDefault(ctx, orgID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to load active workflow", goerr.V(OrganizationIDKey, orgID))
		}
		return wf, nil
	})
}

// InitialStateFor returns the status new issues start in. It falls back to
// model.BootstrapInitialState and never fails.
func (uc *WorkflowUseCase) InitialStateFor(ctx context.Context, orgID model.OrganizationID) string {
	wf, err := uc.ResolveActiveWorkflow(ctx, orgID)
	if err != nil {
		errutil.Handle(ctx, err, "failed to resolve initial state, using bootstrap state")
		return model.BootstrapInitialState
	}
	if wf == nil {
		return model.BootstrapInitialState
	}
	return wf.InitialState
}

// IsFinalState reports whether state is final in the active workflow. Without an
// active workflow nothing is final.
func (uc *WorkflowUseCase) IsFinalState(ctx context.Context, orgID model.OrganizationID, state string) bool {
	wf, err := uc.ResolveActiveWorkflow(ctx, orgID)
	if err != nil {
		errutil.Handle(ctx, err, "failed to resolve final states")
		return false
	}
	if wf == nil {
		return false
	}
	return wf.IsFinal(state)
}

// ValidateTransition checks that from → to is declared by the active workflow and
// that role may take it. It only reads.
func (uc *WorkflowUseCase) ValidateTransition(ctx context.Context, orgID model.OrganizationID, from, to string, role types.Role) (*model.Transition, *model.Workflow, error) {
	wf, err := uc.ResolveActiveWorkflow(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	if wf == nil {
		return nil, nil, goerr.Wrap(ErrNoActiveWorkflow, "organization has no active workflow",
			goerr.V(OrganizationIDKey, orgID))
	}

	tr, ok := wf.FindTransition(from, to)
	if !ok {
		return nil, nil, goerr.Wrap(ErrIllegalTransition, "transition is not defined in the active workflow",
			goerr.V(FromStateKey, from), goerr.V(ToStateKey, to), goerr.V(WorkflowIDKey, wf.ID))
	}
	if !tr.Allows(role) {
		return nil, nil, goerr.Wrap(ErrRoleNotAuthorized, "role is not allowed to perform this transition",
			goerr.V(FromStateKey, from), goerr.V(ToStateKey, to), goerr.V(RoleKey, role))
	}

	return tr, wf, nil
}

// WorkflowInput is a workflow definition submitted by a client. On update, empty
// fields and nil flags keep the stored value.
type WorkflowInput struct {
	Name         string
	States       []string
	InitialState string
	FinalStates  []string
	Transitions  []model.Transition
	IsDefault    *bool
	IsActive     *bool
}

func (in *WorkflowInput) apply(wf *model.Workflow) {
	if in.Name != "" {
		wf.Name = in.Name
	}
	if in.States != nil {
		wf.States = in.States
	}
	if in.InitialState != "" {
		wf.InitialState = in.InitialState
	}
	if in.FinalStates != nil {
		wf.FinalStates = in.FinalStates
	}
	if in.Transitions != nil {
		wf.Transitions = in.Transitions
	}
	if in.IsDefault != nil {
		wf.IsDefault = *in.IsDefault
	}
	if in.IsActive != nil {
		wf.IsActive = *in.IsActive
	}
}

func workflowSnapshot(wf *model.Workflow) model.Snapshot {
	return model.Snapshot{
		"name":         wf.Name,
		"states":       append([]string(nil), wf.States...),
		"initialState": wf.InitialState,
		"finalStates":  append([]string(nil), wf.FinalStates...),
		"isDefault":    wf.IsDefault,
		"isActive":     wf.IsActive,
	}
}

func requireAdmin(actor *auth.Actor, what string) error {
	if !actor.HasRole(types.RoleAdmin) {
		return goerr.Wrap(ErrPermissionDenied, what+" requires Admin", goerr.V(RoleKey, actor.Role))
	}
	return nil
}

// CreateWorkflow validates and stores a new workflow for the actor's organization
func (uc *WorkflowUseCase) CreateWorkflow(ctx context.Context, actor *auth.Actor, input WorkflowInput) (*model.Workflow, error) {
	if err := requireAdmin(actor, "creating a workflow"); err != nil {
		return nil, err
	}

	wf := &model.Workflow{
		OrganizationID: actor.OrganizationID,
		IsActive:       true,
	}
	input.apply(wf)

	return uc.put(ctx, actor, wf, nil)
}

// UpdateWorkflow replaces the definition of an existing workflow
func (uc *WorkflowUseCase) UpdateWorkflow(ctx context.Context, actor *auth.Actor, id model.WorkflowID, input WorkflowInput) (*model.Workflow, error) {
	if err := requireAdmin(actor, "updating a workflow"); err != nil {
		return nil, err
	}

	existing, err := uc.GetWorkflow(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	wf := existing.Copy()
	input.apply(wf)

	return uc.put(ctx, actor, wf, existing)
}

func (uc *WorkflowUseCase) put(ctx context.Context, actor *auth.Actor, wf *model.Workflow, existing *model.Workflow) (*model.Workflow, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	stored, err := uc.repo.Workflow().Put(ctx, wf)
	uc.cache.invalidate(actor.OrganizationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrWorkflowNotFound, "workflow not found", goerr.V(WorkflowIDKey, wf.ID))
		}
		return nil, goerr.Wrap(err, "failed to store workflow", goerr.V(WorkflowIDKey, wf.ID))
	}

	if stored.IsDefault {
		uc.syncOrganizationDefault(ctx, actor.OrganizationID, stored.ID)
	}

	if existing == nil {
		uc.audit.record(ctx, actor, types.AuditActionCreate, types.EntityWorkflow, string(stored.ID), nil, workflowSnapshot(stored))
	} else {
		uc.audit.record(ctx, actor, types.AuditActionUpdate, types.EntityWorkflow, string(stored.ID), workflowSnapshot(existing), workflowSnapshot(stored))
	}

	logging.From(ctx).Info("workflow stored",
		"workflow_id", stored.ID,
		"organization_id", stored.OrganizationID,
		"is_default", stored.IsDefault)

	return stored, nil
}

// syncOrganizationDefault points the organization at its new default workflow
func (uc *WorkflowUseCase) syncOrganizationDefault(ctx context.Context, orgID model.OrganizationID, id model.WorkflowID) {
	org, err := uc.repo.Organization().Get(ctx, orgID)
	if err != nil {
		errutil.Handle(ctx, err, "failed to load organization for default workflow update")
		return
	}
	if org.DefaultWorkflowID == id {
		return
	}
	org.DefaultWorkflowID = id
	if _, err := uc.repo.Organization().Update(ctx, org); err != nil {
		errutil.Handle(ctx, err, "failed to update organization default workflow")
	}
}

// DeleteWorkflow removes a workflow that is not the organization's default
func (uc *WorkflowUseCase) DeleteWorkflow(ctx context.Context, actor *auth.Actor, id model.WorkflowID) error {
	if err := requireAdmin(actor, "deleting a workflow"); err != nil {
		return err
	}

	wf, err := uc.GetWorkflow(ctx, actor, id)
	if err != nil {
		return err
	}
	if wf.IsDefault {
		return goerr.Wrap(ErrCannotDeleteDefaultWorkflow, "cannot delete the default workflow",
			goerr.V(WorkflowIDKey, id))
	}

	err = uc.repo.Workflow().Delete(ctx, actor.OrganizationID, id)
	uc.cache.invalidate(actor.OrganizationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrWorkflowNotFound, "workflow not found", goerr.V(WorkflowIDKey, id))
		}
		if errors.Is(err, interfaces.ErrConflict) {
			return goerr.Wrap(ErrCannotDeleteDefaultWorkflow, "workflow became the default before it was deleted",
				goerr.V(WorkflowIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete workflow", goerr.V(WorkflowIDKey, id))
	}

	uc.audit.record(ctx, actor, types.AuditActionDelete, types.EntityWorkflow, string(id), workflowSnapshot(wf), nil)
	return nil
}

// ListWorkflows returns every workflow of the actor's organization, newest first
func (uc *WorkflowUseCase) ListWorkflows(ctx context.Context, actor *auth.Actor) ([]*model.Workflow, error) {
	workflows, err := uc.repo.Workflow().List(ctx, actor.OrganizationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list workflows", goerr.V(OrganizationIDKey, actor.OrganizationID))
	}
	return workflows, nil
}

// GetWorkflow returns one workflow of the actor's organization
func (uc *WorkflowUseCase) GetWorkflow(ctx context.Context, actor *auth.Actor, id model.WorkflowID) (*model.Workflow, error) {
	wf, err := uc.repo.Workflow().Get(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrWorkflowNotFound, "workflow not found", goerr.V(WorkflowIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get workflow", goerr.V(WorkflowIDKey, id))
	}
	return wf, nil
}
