package usecase

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/metrics"
)

// Issue list page sizes
const (
	DefaultIssuePageSize = 20
	MaxIssuePageSize     = 100
)

// IssueUseCase owns the issue lifecycle: creation, field edits, workflow transitions and deletion
type IssueUseCase struct {
	repo     interfaces.Repository
	workflow *WorkflowUseCase
	audit    *AuditUseCase
	notifier interfaces.Notifier
	blob     interfaces.BlobStore
	clock    func() time.Time
}

// NewIssueUseCase creates the issue lifecycle use case. blob may be nil when attachments are disabled.
func NewIssueUseCase(repo interfaces.Repository, workflow *WorkflowUseCase, audit *AuditUseCase, notifier interfaces.Notifier, blob interfaces.BlobStore) *IssueUseCase {
	return &IssueUseCase{
		repo:     repo,
		workflow: workflow,
		audit:    audit,
		notifier: notifier,
		blob:     blob,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

func publish(ctx context.Context, notifier interfaces.Notifier, orgID model.OrganizationID, name types.EventName, payload any, at time.Time) {
	if notifier == nil {
		return
	}
	notifier.Publish(ctx, model.Event{
		OrganizationID: orgID,
		Name:           name,
		Payload:        payload,
		OccurredAt:     at,
	})
}

func (uc *IssueUseCase) getIssue(ctx context.Context, orgID model.OrganizationID, id model.IssueID) (*model.Issue, error) {
	issue, err := uc.repo.Issue().Get(ctx, orgID, id)
	if err != nil {
		return nil, mapIssueError(err, id)
	}
	return issue, nil
}

func mapIssueError(err error, id model.IssueID) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return goerr.Wrap(ErrIssueNotFound, "issue not found", goerr.V(IssueIDKey, id))
	}
	return goerr.Wrap(err, "issue repository failure", goerr.V(IssueIDKey, id))
}

// checkAssignee confirms the assignee is a user of the organization
func (uc *IssueUseCase) checkAssignee(ctx context.Context, orgID model.OrganizationID, id model.UserID) error {
	if id == "" {
		return nil
	}
	if _, err := uc.repo.User().Get(ctx, orgID, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrInvalidInput, "assignee is not a member of the organization",
				goerr.V(FieldKey, "assignedTo"), goerr.V(UserIDKey, id))
		}
		return goerr.Wrap(err, "failed to look up assignee", goerr.V(UserIDKey, id))
	}
	return nil
}

// CreateIssueInput holds the fields of a new issue. A nil DueDate defaults to the
// organization's SLA window from now.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    types.Category
	Priority    types.Priority
	AssigneeID  model.UserID
	DueDate     *time.Time
}

func (in *CreateIssueInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return goerr.Wrap(ErrInvalidInput, "title is required", goerr.V(FieldKey, "title"))
	}
	if strings.TrimSpace(in.Description) == "" {
		return goerr.Wrap(ErrInvalidInput, "description is required", goerr.V(FieldKey, "description"))
	}
	if !in.Category.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "invalid category", goerr.V(FieldKey, "category"), goerr.V("category", in.Category))
	}
	if !in.Priority.Normalize().IsValid() {
		return goerr.Wrap(ErrInvalidInput, "invalid priority", goerr.V(FieldKey, "priority"), goerr.V("priority", in.Priority))
	}
	return nil
}

// CreateIssue creates an issue in the initial state of the organization's active workflow
func (uc *IssueUseCase) CreateIssue(ctx context.Context, actor *auth.Actor, input CreateIssueInput) (*model.Issue, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := uc.checkAssignee(ctx, actor.OrganizationID, input.AssigneeID); err != nil {
		return nil, err
	}

	now := uc.clock()
	var due time.Time
	if input.DueDate != nil {
		due = input.DueDate.UTC()
	} else {
		org, err := uc.repo.Organization().Get(ctx, actor.OrganizationID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load organization", goerr.V(OrganizationIDKey, actor.OrganizationID))
		}
		due = now.Add(org.SLAWindow())
	}

	issue := &model.Issue{
		OrganizationID: actor.OrganizationID,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Category:       input.Category,
		Priority:       input.Priority.Normalize(),
		Status:         uc.workflow.InitialStateFor(ctx, actor.OrganizationID),
		AssigneeID:     input.AssigneeID,
		CreatorID:      actor.UserID,
		DueDate:        due,
		AISummaries:    []model.AISummary{},
		Attachments:    []model.Attachment{},
	}

	created, err := uc.repo.Issue().Create(ctx, issue)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create issue")
	}

	uc.audit.record(ctx, actor, types.AuditActionCreate, types.EntityIssue, string(created.ID), nil, model.Snapshot{
		"title":    created.Title,
		"status":   created.Status,
		"category": string(created.Category),
		"priority": string(created.Priority),
	})
	publish(ctx, uc.notifier, actor.OrganizationID, types.EventIssueCreated, created, now)

	return created, nil
}

// GetIssue returns an issue of the actor's organization
func (uc *IssueUseCase) GetIssue(ctx context.Context, actor *auth.Actor, id model.IssueID) (*model.Issue, error) {
	return uc.getIssue(ctx, actor.OrganizationID, id)
}

// IssuePage is one page of issues
type IssuePage struct {
	Issues     []*model.Issue `json:"issues"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// ListIssues returns the actor's organization issues matching filter, newest first
func (uc *IssueUseCase) ListIssues(ctx context.Context, actor *auth.Actor, filter *interfaces.IssueFilter, page, pageSize int) (*IssuePage, error) {
	page, pageSize = normalizePage(page, pageSize, DefaultIssuePageSize, MaxIssuePageSize)

	issues, total, err := uc.repo.Issue().List(ctx, actor.OrganizationID, filter, page, pageSize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues", goerr.V(OrganizationIDKey, actor.OrganizationID))
	}

	return &IssuePage{
		Issues:     issues,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// IssuePatch lists the mutable fields of an issue. Nil fields are left unchanged and
// an empty AssigneeID unassigns. Status is not mutable here.
type IssuePatch struct {
	Title       *string
	Description *string
	Category    *types.Category
	Priority    *types.Priority
	AssigneeID  *model.UserID
	DueDate     *time.Time
}

func (p *IssuePatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return goerr.Wrap(ErrInvalidInput, "title must not be empty", goerr.V(FieldKey, "title"))
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return goerr.Wrap(ErrInvalidInput, "description must not be empty", goerr.V(FieldKey, "description"))
	}
	if p.Category != nil && !p.Category.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "invalid category", goerr.V(FieldKey, "category"))
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "invalid priority", goerr.V(FieldKey, "priority"))
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return goerr.Wrap(ErrInvalidInput, "dueDate must be set", goerr.V(FieldKey, "dueDate"))
	}
	return nil
}

// apply writes changed fields into issue and returns snapshots of only those fields
func (p *IssuePatch) apply(issue *model.Issue) (prev, next model.Snapshot) {
	prev, next = model.Snapshot{}, model.Snapshot{}

	if p.Title != nil && *p.Title != issue.Title {
		prev["title"], next["title"] = issue.Title, *p.Title
		issue.Title = *p.Title
	}
	if p.Description != nil && *p.Description != issue.Description {
		prev["description"], next["description"] = issue.Description, *p.Description
		issue.Description = *p.Description
	}
	if p.Category != nil && *p.Category != issue.Category {
		prev["category"], next["category"] = string(issue.Category), string(*p.Category)
		issue.Category = *p.Category
	}
	if p.Priority != nil && *p.Priority != issue.Priority {
		prev["priority"], next["priority"] = string(issue.Priority), string(*p.Priority)
		issue.Priority = *p.Priority
	}
	if p.AssigneeID != nil && *p.AssigneeID != issue.AssigneeID {
		prev["assignedTo"], next["assignedTo"] = string(issue.AssigneeID), string(*p.AssigneeID)
		issue.AssigneeID = *p.AssigneeID
	}
	if p.DueDate != nil && !p.DueDate.Equal(issue.DueDate) {
		due := p.DueDate.UTC()
		prev["dueDate"], next["dueDate"] = issue.DueDate, due
		issue.DueDate = due
	}
	return prev, next
}

// UpdateIssueFields applies the allow-listed fields of patch
func (uc *IssueUseCase) UpdateIssueFields(ctx context.Context, actor *auth.Actor, id model.IssueID, patch IssuePatch) (*model.Issue, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	if patch.AssigneeID != nil {
		if err := uc.checkAssignee(ctx, actor.OrganizationID, *patch.AssigneeID); err != nil {
			return nil, err
		}
	}

	var prev, next model.Snapshot
	updated, err := uc.repo.Issue().Update(ctx, actor.OrganizationID, id, func(issue *model.Issue) error {
		prev, next = patch.apply(issue)
		return nil
	})
	if err != nil {
		return nil, mapIssueError(err, id)
	}
	if len(next) == 0 {
		return updated, nil
	}

	uc.audit.record(ctx, actor, types.AuditActionUpdate, types.EntityIssue, string(id), prev, next)
	if _, changed := next["assignedTo"]; changed {
		uc.audit.record(ctx, actor, types.AuditActionAssignment, types.EntityIssue, string(id),
			model.Snapshot{"assignedTo": prev["assignedTo"]},
			model.Snapshot{"assignedTo": next["assignedTo"]})
	}
	publish(ctx, uc.notifier, actor.OrganizationID, types.EventIssueUpdated, updated, uc.clock())

	return updated, nil
}

// TransitionIssue moves an issue to newStatus through the active workflow. The write
// is conditional on the status read during validation, so a concurrent transition
// makes this one fail with ErrConcurrentModification instead of skipping a step.
func (uc *IssueUseCase) TransitionIssue(ctx context.Context, actor *auth.Actor, id model.IssueID, newStatus string) (*model.Issue, error) {
	issue, err := uc.getIssue(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	_, wf, err := uc.workflow.ValidateTransition(ctx, actor.OrganizationID, issue.Status, newStatus, actor.Role)
	if err != nil {
		metrics.Transitions.WithLabelValues(Kind(err)).Inc()
		return nil, err
	}

	now := uc.clock()
	var resolvedAt *time.Time
	if wf.IsFinal(newStatus) {
		resolvedAt = &now
	}

	updated, err := uc.repo.Issue().UpdateStatus(ctx, actor.OrganizationID, id, issue.Status, newStatus, resolvedAt)
	if err != nil {
		if errors.Is(err, interfaces.ErrConflict) {
			metrics.Transitions.WithLabelValues("ConcurrentModification").Inc()
			return nil, goerr.Wrap(ErrConcurrentModification, "issue status changed during transition",
				goerr.V(IssueIDKey, id), goerr.V(FromStateKey, issue.Status), goerr.V(ToStateKey, newStatus))
		}
		return nil, mapIssueError(err, id)
	}
	metrics.Transitions.WithLabelValues("ok").Inc()

	uc.audit.record(ctx, actor, types.AuditActionWorkflowTransition, types.EntityIssue, string(id),
		model.Snapshot{"status": issue.Status},
		model.Snapshot{"status": newStatus})
	publish(ctx, uc.notifier, actor.OrganizationID, types.EventIssueTransitioned, model.IssueTransitionedPayload{
		IssueID:        id,
		PreviousStatus: issue.Status,
		NewStatus:      newStatus,
		PerformedBy:    actor.Name,
	}, now)

	logging.From(ctx).Info("issue transitioned",
		"issue_id", id,
		"from", issue.Status,
		"to", newStatus,
		"user_id", actor.UserID)

	return updated, nil
}

// DeleteIssue records the deletion and then removes the issue. Admin and Manager only.
func (uc *IssueUseCase) DeleteIssue(ctx context.Context, actor *auth.Actor, id model.IssueID) error {
	if !actor.HasRole(types.RoleAdmin, types.RoleManager) {
		return goerr.Wrap(ErrPermissionDenied, "deleting an issue requires Admin or Manager", goerr.V(RoleKey, actor.Role))
	}

	issue, err := uc.getIssue(ctx, actor.OrganizationID, id)
	if err != nil {
		return err
	}

	// The entry must describe a record that still exists
	uc.audit.record(ctx, actor, types.AuditActionDelete, types.EntityIssue, string(id),
		model.Snapshot{"title": issue.Title, "status": issue.Status}, nil)

	if err := uc.repo.Issue().Delete(ctx, actor.OrganizationID, id); err != nil {
		return mapIssueError(err, id)
	}

	publish(ctx, uc.notifier, actor.OrganizationID, types.EventIssueDeleted, model.IssueDeletedPayload{IssueID: id}, uc.clock())
	return nil
}

// AddAttachment stores body in blob storage and links it to the issue
func (uc *IssueUseCase) AddAttachment(ctx context.Context, actor *auth.Actor, id model.IssueID, filename, contentType string, body io.Reader) (*model.Issue, error) {
	if uc.blob == nil {
		return nil, goerr.Wrap(ErrInvalidInput, "attachment storage is not configured")
	}
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, goerr.Wrap(ErrInvalidInput, "filename is required", goerr.V(FieldKey, "filename"))
	}

	if _, err := uc.getIssue(ctx, actor.OrganizationID, id); err != nil {
		return nil, err
	}

	key := path.Join(string(actor.OrganizationID), string(id), uuid.NewString()+"-"+filename)
	url, size, err := uc.blob.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store attachment", goerr.V(IssueIDKey, id), goerr.V("filename", filename))
	}

	attachment := model.Attachment{
		Filename:    filename,
		URL:         url,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  uc.clock(),
	}
	updated, err := uc.repo.Issue().AppendAttachment(ctx, actor.OrganizationID, id, attachment)
	if err != nil {
		return nil, mapIssueError(err, id)
	}

	uc.audit.record(ctx, actor, types.AuditActionUpdate, types.EntityIssue, string(id), nil, model.Snapshot{
		"attachment": map[string]any{"filename": filename, "url": url},
	})
	publish(ctx, uc.notifier, actor.OrganizationID, types.EventIssueUpdated, updated, attachment.UploadedAt)

	return updated, nil
}
