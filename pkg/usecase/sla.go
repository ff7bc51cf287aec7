package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/errutil"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/metrics"
)

// SLAUseCase flags overdue issues that are not in a final state of their organization's workflow
type SLAUseCase struct {
	repo     interfaces.Repository
	workflow *WorkflowUseCase
	audit    *AuditUseCase
	notifier interfaces.Notifier
	clock    func() time.Time

	running sync.Mutex
}

// NewSLAUseCase creates the SLA scanner use case
func NewSLAUseCase(repo interfaces.Repository, workflow *WorkflowUseCase, audit *AuditUseCase, notifier interfaces.Notifier) *SLAUseCase {
	return &SLAUseCase{
		repo:     repo,
		workflow: workflow,
		audit:    audit,
		notifier: notifier,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// ScanResult summarizes one scan pass
type ScanResult struct {
	// Skipped is set when another scan was still running and this call did nothing
	Skipped      bool
	Candidates   int
	Breached     int
	SkippedFinal int
	Failed       int
	Duration     time.Duration
}

// Scan runs one pass. Issues are flagged independently: a failure on one is logged
// and does not stop the rest. A call made while a pass is running returns at once.
func (uc *SLAUseCase) Scan(ctx context.Context) (*ScanResult, error) {
	if !uc.running.TryLock() {
		metrics.SLAScans.WithLabelValues("skipped").Inc()
		logging.From(ctx).Warn("SLA scan still running, skipping this trigger")
		return &ScanResult{Skipped: true}, nil
	}
	defer uc.running.Unlock()

	started := time.Now()
	now := uc.clock()

	candidates, err := uc.repo.Issue().ListOverdue(ctx, now)
	if err != nil {
		metrics.SLAScans.WithLabelValues("failed").Inc()
		return nil, goerr.Wrap(err, "failed to list overdue issues")
	}

	result := &ScanResult{Candidates: len(candidates)}
	workflows := make(map[model.OrganizationID]*model.Workflow)
	resolved := make(map[model.OrganizationID]error)

	for _, issue := range candidates {
		orgID := issue.OrganizationID
		if _, done := resolved[orgID]; !done {
			workflows[orgID], resolved[orgID] = uc.workflow.ResolveActiveWorkflow(ctx, orgID)
		}
		if err := resolved[orgID]; err != nil {
			result.Failed++
			metrics.SLAScanFailures.Inc()
			errutil.Handle(ctx, goerr.Wrap(err, "failed to resolve workflow for SLA check",
				goerr.V(IssueIDKey, issue.ID)), "SLA check failed")
			continue
		}

		if wf := workflows[orgID]; wf != nil && wf.IsFinal(issue.Status) {
			result.SkippedFinal++
			continue
		}

		flagged, err := uc.flag(ctx, issue, now)
		if err != nil {
			result.Failed++
			metrics.SLAScanFailures.Inc()
			errutil.Handle(ctx, err, "failed to flag SLA breach")
			continue
		}
		if flagged {
			result.Breached++
		}
	}

	result.Duration = time.Since(started)
	metrics.SLAScans.WithLabelValues("completed").Inc()
	metrics.SLAScanDuration.Observe(result.Duration.Seconds())

	if result.Breached > 0 || result.Failed > 0 {
		logging.From(ctx).Info("SLA scan completed",
			"candidates", result.Candidates,
			"breached", result.Breached,
			"skipped_final", result.SkippedFinal,
			"failed", result.Failed,
			"duration", result.Duration)
	}

	return result, nil
}

// flag marks one issue. It returns false without error when a concurrent scan
// flagged it first or its status changed after it was listed.
func (uc *SLAUseCase) flag(ctx context.Context, issue *model.Issue, now time.Time) (bool, error) {
	updated, err := uc.repo.Issue().MarkSLABreached(ctx, issue.OrganizationID, issue.ID, issue.Status, now)
	if err != nil {
		if errors.Is(err, interfaces.ErrConflict) || errors.Is(err, interfaces.ErrNotFound) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to mark SLA breach", goerr.V(IssueIDKey, issue.ID))
	}

	metrics.SLABreaches.Inc()

	uc.audit.Record(ctx, &model.AuditLogEntry{
		Action:         types.AuditActionSLABreach,
		Entity:         types.EntityIssue,
		EntityID:       string(issue.ID),
		PreviousValue:  model.Snapshot{"slaBreached": false},
		NewValue:       model.Snapshot{"slaBreached": true, "slaBreachedAt": now},
		PerformedBy:    issue.CreatorID,
		OrganizationID: issue.OrganizationID,
	})
	publish(ctx, uc.notifier, issue.OrganizationID, types.EventSLABreach, model.SLABreachPayload{
		IssueID:    updated.ID,
		Title:      updated.Title,
		DueDate:    updated.DueDate,
		BreachedAt: now,
	}, now)

	return true, nil
}
