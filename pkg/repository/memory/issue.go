package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

type issueRepository struct {
	mu     sync.RWMutex
	issues map[model.OrganizationID]map[model.IssueID]*model.Issue
}

func newIssueRepository() *issueRepository {
	return &issueRepository{
		issues: make(map[model.OrganizationID]map[model.IssueID]*model.Issue),
	}
}

// lookup must be called with r.mu held
func (r *issueRepository) lookup(orgID model.OrganizationID, id model.IssueID) (*model.Issue, error) {
	issue, exists := r.issues[orgID][id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V("id", id))
	}
	return issue, nil
}

func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, exists := r.issues[issue.OrganizationID]
	if !exists {
		org = make(map[model.IssueID]*model.Issue)
		r.issues[issue.OrganizationID] = org
	}

	now := time.Now().UTC()
	created := issue.Copy()
	if created.ID == "" {
		created.ID = model.NewIssueID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	org[created.ID] = created
	return created.Copy(), nil
}

func (r *issueRepository) Get(ctx context.Context, orgID model.OrganizationID, id model.IssueID) (*model.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}
	return issue.Copy(), nil
}

func (r *issueRepository) List(ctx context.Context, orgID model.OrganizationID, filter *interfaces.IssueFilter, page, pageSize int) ([]*model.Issue, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.Issue, 0)
	for _, issue := range r.issues[orgID] {
		if filter.Match(issue) {
			matched = append(matched, issue)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	paged := paginate(matched, page, pageSize)
	result := make([]*model.Issue, len(paged))
	for i, issue := range paged {
		result[i] = issue.Copy()
	}
	return result, len(matched), nil
}

func (r *issueRepository) Update(ctx context.Context, orgID model.OrganizationID, id model.IssueID, mutate func(issue *model.Issue) error) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}

	updated := existing.Copy()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.OrganizationID = existing.OrganizationID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.issues[orgID][id] = updated
	return updated.Copy(), nil
}

func (r *issueRepository) UpdateStatus(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expected, next string, resolvedAt *time.Time) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}
	if issue.Status != expected {
		return nil, goerr.Wrap(ErrConflict, "issue status changed concurrently",
			goerr.V("id", id), goerr.V("expected", expected), goerr.V("actual", issue.Status))
	}

	issue.Status = next
	if resolvedAt != nil && issue.ResolvedAt == nil {
		t := *resolvedAt
		issue.ResolvedAt = &t
	}
	issue.UpdatedAt = time.Now().UTC()
	return issue.Copy(), nil
}

func (r *issueRepository) MarkSLABreached(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expectedStatus string, at time.Time) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}
	if issue.SLABreached {
		return nil, goerr.Wrap(ErrConflict, "issue already flagged as SLA breached", goerr.V("id", id))
	}
	if issue.Status != expectedStatus {
		return nil, goerr.Wrap(ErrConflict, "issue status changed since it was checked",
			goerr.V("id", id), goerr.V("expected", expectedStatus), goerr.V("actual", issue.Status))
	}

	issue.SLABreached = true
	issue.SLABreachedAt = &at
	issue.UpdatedAt = time.Now().UTC()
	return issue.Copy(), nil
}

func (r *issueRepository) ListOverdue(ctx context.Context, now time.Time) ([]*model.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overdue := make([]*model.Issue, 0)
	for _, org := range r.issues {
		for _, issue := range org {
			if !issue.SLABreached && issue.IsOverdue(now) {
				overdue = append(overdue, issue.Copy())
			}
		}
	}

	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].DueDate.Before(overdue[j].DueDate)
	})
	return overdue, nil
}

func (r *issueRepository) AppendSummary(ctx context.Context, orgID model.OrganizationID, id model.IssueID, summary model.AISummary) (*model.AISummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}

	summary.Version = issue.NextSummaryVersion()
	issue.AISummaries = append(issue.AISummaries, summary)
	issue.UpdatedAt = time.Now().UTC()
	return &summary, nil
}

func (r *issueRepository) AppendAttachment(ctx context.Context, orgID model.OrganizationID, id model.IssueID, attachment model.Attachment) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, err := r.lookup(orgID, id)
	if err != nil {
		return nil, err
	}

	issue.Attachments = append(issue.Attachments, attachment)
	issue.UpdatedAt = time.Now().UTC()
	return issue.Copy(), nil
}

func (r *issueRepository) Delete(ctx context.Context, orgID model.OrganizationID, id model.IssueID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(orgID, id); err != nil {
		return err
	}
	delete(r.issues[orgID], id)
	return nil
}
