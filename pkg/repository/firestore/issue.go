package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type issueRepository struct {
	*base
}

func (r *issueRepository) doc(id model.IssueID) *firestore.DocumentRef {
	return r.collection(collectionIssues).Doc(string(id))
}

// getInTx reads the issue inside tx and hides issues of other organizations
func (r *issueRepository) getInTx(tx *firestore.Transaction, orgID model.OrganizationID, id model.IssueID) (*model.Issue, error) {
	doc, err := tx.Get(r.doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V("id", id))
	}

	var issue model.Issue
	if err := doc.DataTo(&issue); err != nil {
		return nil, goerr.Wrap(err, "failed to decode issue", goerr.V("id", id))
	}
	if issue.OrganizationID != orgID {
		return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V("id", id))
	}
	return &issue, nil
}

// modify runs fn on the current issue inside a transaction and writes the result back
func (r *issueRepository) modify(ctx context.Context, orgID model.OrganizationID, id model.IssueID, fn func(issue *model.Issue) error) (*model.Issue, error) {
	var result *model.Issue
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		issue, err := r.getInTx(tx, orgID, id)
		if err != nil {
			return err
		}

		createdAt := issue.CreatedAt
		if err := fn(issue); err != nil {
			return err
		}
		issue.ID = id
		issue.OrganizationID = orgID
		issue.CreatedAt = createdAt
		issue.UpdatedAt = time.Now().UTC()

		result = issue
		return tx.Set(r.doc(id), issue)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) (*model.Issue, error) {
	now := time.Now().UTC()
	created := issue.Copy()
	if created.ID == "" {
		created.ID = model.NewIssueID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.doc(created.ID).Create(ctx, created); err != nil {
		return nil, goerr.Wrap(err, "failed to create issue", goerr.V("id", created.ID))
	}
	return created, nil
}

func (r *issueRepository) Get(ctx context.Context, orgID model.OrganizationID, id model.IssueID) (*model.Issue, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V("id", id))
	}

	var issue model.Issue
	if err := doc.DataTo(&issue); err != nil {
		return nil, goerr.Wrap(err, "failed to decode issue", goerr.V("id", id))
	}
	if issue.OrganizationID != orgID {
		return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V("id", id))
	}
	return &issue, nil
}

func (r *issueRepository) List(ctx context.Context, orgID model.OrganizationID, filter *interfaces.IssueFilter, page, pageSize int) ([]*model.Issue, int, error) {
	query := r.collection(collectionIssues).Where("OrganizationID", "==", string(orgID))
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("Status", "==", *filter.Status)
		}
		if filter.Category != nil {
			query = query.Where("Category", "==", string(*filter.Category))
		}
		if filter.Priority != nil {
			query = query.Where("Priority", "==", string(*filter.Priority))
		}
		if filter.AssigneeID != nil {
			query = query.Where("AssigneeID", "==", string(*filter.AssigneeID))
		}
		if filter.SLABreached != nil {
			query = query.Where("SLABreached", "==", *filter.SLABreached)
		}
	}

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count issues")
	}
	total := len(allDocs)

	ordered := query.OrderBy("CreatedAt", firestore.Desc)
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		ordered = ordered.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	iter := ordered.Documents(ctx)
	defer iter.Stop()

	issues := make([]*model.Issue, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, goerr.Wrap(err, "failed to iterate issues")
		}

		var issue model.Issue
		if err := doc.DataTo(&issue); err != nil {
			return nil, 0, goerr.Wrap(err, "failed to decode issue", goerr.V("doc_id", doc.Ref.ID))
		}
		issues = append(issues, &issue)
	}

	return issues, total, nil
}

func (r *issueRepository) Update(ctx context.Context, orgID model.OrganizationID, id model.IssueID, mutate func(issue *model.Issue) error) (*model.Issue, error) {
	return r.modify(ctx, orgID, id, mutate)
}

func (r *issueRepository) UpdateStatus(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expected, next string, resolvedAt *time.Time) (*model.Issue, error) {
	return r.modify(ctx, orgID, id, func(issue *model.Issue) error {
		if issue.Status != expected {
			return goerr.Wrap(ErrConflict, "issue status changed concurrently",
				goerr.V("id", id), goerr.V("expected", expected), goerr.V("actual", issue.Status))
		}
		issue.Status = next
		if resolvedAt != nil && issue.ResolvedAt == nil {
			t := *resolvedAt
			issue.ResolvedAt = &t
		}
		return nil
	})
}

func (r *issueRepository) MarkSLABreached(ctx context.Context, orgID model.OrganizationID, id model.IssueID, expectedStatus string, at time.Time) (*model.Issue, error) {
	return r.modify(ctx, orgID, id, func(issue *model.Issue) error {
		if issue.SLABreached {
			return goerr.Wrap(ErrConflict, "issue already flagged as SLA breached", goerr.V("id", id))
		}
		if issue.Status != expectedStatus {
			return goerr.Wrap(ErrConflict, "issue status changed since it was checked",
				goerr.V("id", id), goerr.V("expected", expectedStatus), goerr.V("actual", issue.Status))
		}
		issue.SLABreached = true
		issue.SLABreachedAt = &at
		return nil
	})
}

func (r *issueRepository) ListOverdue(ctx context.Context, now time.Time) ([]*model.Issue, error) {
	iter := r.collection(collectionIssues).
		Where("SLABreached", "==", false).
		Where("DueDate", "<", now).
		OrderBy("DueDate", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	issues := make([]*model.Issue, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate overdue issues")
		}

		var issue model.Issue
		if err := doc.DataTo(&issue); err != nil {
			return nil, goerr.Wrap(err, "failed to decode issue", goerr.V("doc_id", doc.Ref.ID))
		}
		issues = append(issues, &issue)
	}

	return issues, nil
}

func (r *issueRepository) AppendSummary(ctx context.Context, orgID model.OrganizationID, id model.IssueID, summary model.AISummary) (*model.AISummary, error) {
	_, err := r.modify(ctx, orgID, id, func(issue *model.Issue) error {
		summary.Version = issue.NextSummaryVersion()
		issue.AISummaries = append(issue.AISummaries, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *issueRepository) AppendAttachment(ctx context.Context, orgID model.OrganizationID, id model.IssueID, attachment model.Attachment) (*model.Issue, error) {
	return r.modify(ctx, orgID, id, func(issue *model.Issue) error {
		issue.Attachments = append(issue.Attachments, attachment)
		return nil
	})
}

func (r *issueRepository) Delete(ctx context.Context, orgID model.OrganizationID, id model.IssueID) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := r.getInTx(tx, orgID, id); err != nil {
			return err
		}
		return tx.Delete(r.doc(id))
	})
}
