package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// IssueFilter narrows ListIssues. Nil fields are not applied.
type IssueFilter struct {
	Status      *string
	Category    *types.Category
	Priority    *types.Priority
	AssigneeID  *model.UserID
	SLABreached *bool
}

// Match reports whether issue satisfies every set field of the filter
func (f *IssueFilter) Match(issue *model.Issue) bool {
	if f == nil {
		return true
	}
	if f.Status != nil && issue.Status != *f.Status {
		return false
	}
	if f.Category != nil && issue.Category != *f.Category {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	if f.AssigneeID != nil && issue.AssigneeID != *f.AssigneeID {
		return false
	}
	if f.SLABreached != nil && issue.SLABreached != *f.SLABreached {
		return false
	}
	return true
}

// IssueRepository stores issues. Every lookup is scoped to an organization and an issue
// of another organization is reported as ErrNotFound.
type IssueRepository interface {
	Create(ctx context.Context, issue *model.Issue) (*model.Issue, error)
	Get(ctx context.Context, orgID model.OrganizationID, id model.IssueID) (*model.Issue, error)

	// List returns one page of issues, newest first, and the total number of matches
	List(ctx context.Context, orgID model.OrganizationID, filter *IssueFilter, page, pageSize int) ([]*model.Issue, int, error)

	// Update applies mutate to the stored issue atomically and persists the result
	Update(ctx context.Context, orgID model.OrganizationID, id model.IssueID, mutate func(issue *model.Issue) error) (*model.Issue, error)

	// UpdateStatus sets the status only if it still equals expected. Otherwise it fails with
	// ErrConflict and the issue is unchanged. resolvedAt is applied only when the issue has none.
	UpdateStatus(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expected, next string, resolvedAt *time.Time) (*model.Issue, error)

	// MarkSLABreached flags the issue only if it is not flagged yet and its status is
	// still expectedStatus, else ErrConflict
	MarkSLABreached(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expectedStatus string, at time.Time) (*model.Issue, error)

	// ListOverdue returns issues of every organization with dueDate before now that are not flagged
	ListOverdue(ctx context.Context, now time.Time) ([]*model.Issue, error)

	// AppendSummary stores summary with version set to the current maximum plus one
	AppendSummary(ctx context.Context, orgID model.OrganizationID, id model.IssueID, summary model.AISummary) (*model.AISummary, error)

	AppendAttachment(ctx context.Context, orgID model.OrganizationID, id model.IssueID, attachment model.Attachment) (*model.Issue, error)
	Delete(ctx context.Context, orgID model.OrganizationID, id model.IssueID) error
}
