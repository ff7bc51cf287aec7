package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
)

// SummaryUseCase generates versioned AI root-cause summaries for issues
type SummaryUseCase struct {
	repo       interfaces.Repository
	summarizer interfaces.Summarizer
	audit      *AuditUseCase
	clock      func() time.Time
}

// NewSummaryUseCase creates the AI summary use case
func NewSummaryUseCase(repo interfaces.Repository, summarizer interfaces.Summarizer, audit *AuditUseCase) *SummaryUseCase {
	return &SummaryUseCase{
		repo:       repo,
		summarizer: summarizer,
		audit:      audit,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Generate calls the summarizer and appends the result as the next version. The
// summarizer runs before any write, so no lock is held while it is pending.
func (uc *SummaryUseCase) Generate(ctx context.Context, actor *auth.Actor, id model.IssueID) (*model.AISummary, error) {
	issue, err := uc.repo.Issue().Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, mapIssueError(err, id)
	}

	result := uc.summarizer.Generate(ctx, interfaces.SummaryInput{
		Title:       issue.Title,
		Description: issue.Description,
		Category:    string(issue.Category),
		Priority:    string(issue.Priority),
	})
	if result.Err != nil {
		logging.From(ctx).Warn("AI summary fell back to mock",
			"issue_id", id,
			"model", result.Model,
			"reason", result.Err.Error())
	}

	summary, err := uc.repo.Issue().AppendSummary(ctx, actor.OrganizationID, id, model.AISummary{
		Summary:     result.Summary,
		Model:       result.Model,
		GeneratedAt: uc.clock(),
	})
	if err != nil {
		return nil, mapIssueError(err, id)
	}

	uc.audit.record(ctx, actor, types.AuditActionAISummaryGenerated, types.EntityIssue, string(id), nil, model.Snapshot{
		"version": summary.Version,
		"model":   summary.Model,
	})

	return summary, nil
}

// List returns the summaries of an issue, newest version first
func (uc *SummaryUseCase) List(ctx context.Context, actor *auth.Actor, id model.IssueID) ([]model.AISummary, error) {
	issue, err := uc.repo.Issue().Get(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, mapIssueError(err, id)
	}

	summaries := append([]model.AISummary{}, issue.AISummaries...)
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Version > summaries[j].Version
	})
	return summaries, nil
}
