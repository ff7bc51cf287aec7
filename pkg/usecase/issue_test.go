package usecase_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/usecase"
)

// reviewWorkflow is the three-state pipeline used by the lifecycle scenarios
func reviewWorkflow() usecase.WorkflowInput {
	return usecase.WorkflowInput{
		Name:         "Review",
		States:       []string{"Draft", "Submitted", "Closed"},
		InitialState: "Draft",
		FinalStates:  []string{"Closed"},
		Transitions: []model.Transition{
			{From: "Draft", To: "Submitted", AllowedRoles: []types.Role{types.RoleUser}},
			{From: "Submitted", To: "Closed", AllowedRoles: []types.Role{types.RoleManager}},
		},
		IsDefault: ptr(true),
	}
}

func TestIssueUseCase_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.uc.Workflow.CreateWorkflow(env.ctx, env.admin, reviewWorkflow())
	gt.NoError(t, err).Required()

	user := env.addUser(t, types.RoleUser)
	manager := env.addUser(t, types.RoleManager)

	issue := env.createIssue(t, user)
	gt.Value(t, issue.Status).Equal("Draft")
	gt.Value(t, issue.CreatorID).Equal(user.UserID)
	gt.Value(t, issue.DueDate).Equal(env.clock.Now().Add(7 * 24 * time.Hour))

	t.Run("no direct edge to a final state", func(t *testing.T) {
		_, err := env.uc.Issue.TransitionIssue(env.ctx, user, issue.ID, "Closed")
		gt.Error(t, err).Is(usecase.ErrIllegalTransition)
	})

	t.Run("declared edge succeeds and is audited", func(t *testing.T) {
		updated, err := env.uc.Issue.TransitionIssue(env.ctx, user, issue.ID, "Submitted")
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Status).Equal("Submitted")
		gt.Value(t, updated.ResolvedAt).Nil()

		entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
		gt.Number(t, countAction(entries, types.AuditActionWorkflowTransition)).Equal(1)
		gt.Value(t, entries[0].PreviousValue["status"]).Equal("Draft")
		gt.Value(t, entries[0].NewValue["status"]).Equal("Submitted")
		gt.Value(t, entries[0].PerformedBy).Equal(user.UserID)

		events := env.notifier.named(types.EventIssueTransitioned)
		gt.Array(t, events).Length(1).Required()
		payload := events[0].Payload.(model.IssueTransitionedPayload)
		gt.Value(t, payload.NewStatus).Equal("Submitted")
		gt.Value(t, events[0].RoomKey()).Equal(model.RoomKey(env.org.ID))
	})

	t.Run("role outside the allowed set leaves status unchanged", func(t *testing.T) {
		_, err := env.uc.Issue.TransitionIssue(env.ctx, user, issue.ID, "Closed")
		gt.Error(t, err).Is(usecase.ErrRoleNotAuthorized)

		current, err := env.uc.Issue.GetIssue(env.ctx, user, issue.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, current.Status).Equal("Submitted")
	})

	t.Run("final transition sets resolvedAt", func(t *testing.T) {
		env.clock.Advance(time.Hour)
		updated, err := env.uc.Issue.TransitionIssue(env.ctx, manager, issue.ID, "Closed")
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Status).Equal("Closed")
		gt.Value(t, updated.ResolvedAt).NotNil()
		gt.Value(t, *updated.ResolvedAt).Equal(env.clock.Now())
		gt.Bool(t, env.uc.Workflow.IsFinalState(env.ctx, env.org.ID, "Closed")).True()
	})
}

func TestIssueUseCase_ResolvedAtIsSetOnce(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.uc.Workflow.CreateWorkflow(env.ctx, env.admin, usecase.WorkflowInput{
		Name:         "Reopenable",
		States:       []string{"Open", "Done"},
		InitialState: "Open",
		FinalStates:  []string{"Done"},
		Transitions: []model.Transition{
			{From: "Open", To: "Done"},
			{From: "Done", To: "Open"},
		},
		IsDefault: ptr(true),
	})
	gt.NoError(t, err).Required()

	issue := env.createIssue(t, env.admin)

	first, err := env.uc.Issue.TransitionIssue(env.ctx, env.admin, issue.ID, "Done")
	gt.NoError(t, err).Required()
	resolved := *first.ResolvedAt

	env.clock.Advance(time.Hour)
	_, err = env.uc.Issue.TransitionIssue(env.ctx, env.admin, issue.ID, "Open")
	gt.NoError(t, err).Required()

	env.clock.Advance(time.Hour)
	again, err := env.uc.Issue.TransitionIssue(env.ctx, env.admin, issue.ID, "Done")
	gt.NoError(t, err).Required()
	gt.Value(t, *again.ResolvedAt).Equal(resolved)
}

func TestIssueUseCase_ConcurrentTransitions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.uc.Workflow.CreateWorkflow(env.ctx, env.admin, reviewWorkflow())
	gt.NoError(t, err).Required()

	user := env.addUser(t, types.RoleUser)
	issue := env.createIssue(t, user)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.uc.Issue.TransitionIssue(env.ctx, user, issue.ID, "Submitted")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		// losers either read the old status and lost the write, or read the new one
		ok := usecase.Kind(err) == "ConcurrentModification" || usecase.Kind(err) == "IllegalTransition"
		gt.Bool(t, ok).True()
	}
	gt.Number(t, succeeded).Equal(1)

	entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
	gt.Number(t, countAction(entries, types.AuditActionWorkflowTransition)).Equal(1)
}

func TestIssueUseCase_CreateIssue(t *testing.T) {
	env := newTestEnv(t)

	t.Run("validates input", func(t *testing.T) {
		_, err := env.uc.Issue.CreateIssue(env.ctx, env.admin, usecase.CreateIssueInput{
			Title:       " ",
			Description: "d",
			Category:    types.CategoryQuality,
		})
		gt.Error(t, err).Is(usecase.ErrInvalidInput)

		_, err = env.uc.Issue.CreateIssue(env.ctx, env.admin, usecase.CreateIssueInput{
			Title:       "t",
			Description: "d",
			Category:    types.Category("Finance"),
		})
		gt.Error(t, err).Is(usecase.ErrInvalidInput)
	})

	t.Run("assignee must belong to the organization", func(t *testing.T) {
		_, err := env.uc.Issue.CreateIssue(env.ctx, env.admin, usecase.CreateIssueInput{
			Title:       "t",
			Description: "d",
			Category:    types.CategorySafety,
			AssigneeID:  model.NewUserID(),
		})
		gt.Error(t, err).Is(usecase.ErrInvalidInput)
	})

	t.Run("explicit due date and default priority", func(t *testing.T) {
		due := env.clock.Now().Add(48 * time.Hour)
		issue, err := env.uc.Issue.CreateIssue(env.ctx, env.admin, usecase.CreateIssueInput{
			Title:       "Label mix-up",
			Description: "Wrong label applied to carton",
			Category:    types.CategoryRegulatory,
			DueDate:     &due,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, issue.DueDate).Equal(due)
		gt.Value(t, issue.Priority).Equal(types.PriorityMedium)

		entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
		gt.Array(t, entries).Length(1).Required()
		gt.Value(t, entries[0].Action).Equal(types.AuditActionCreate)
		gt.Value(t, entries[0].NewValue["title"]).Equal("Label mix-up")

		gt.Number(t, len(env.notifier.named(types.EventIssueCreated))).GreaterOrEqual(1)
	})
}

func TestIssueUseCase_UpdateIssueFields(t *testing.T) {
	env := newTestEnv(t)
	assignee := env.addUser(t, types.RoleReviewer)
	issue := env.createIssue(t, env.admin)

	title := "Pressure deviation, room 4"
	assigneeID := assignee.UserID
	updated, err := env.uc.Issue.UpdateIssueFields(env.ctx, env.admin, issue.ID, usecase.IssuePatch{
		Title:      &title,
		AssigneeID: &assigneeID,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, updated.Title).Equal(title)
	gt.Value(t, updated.AssigneeID).Equal(assignee.UserID)
	gt.Value(t, updated.Status).Equal(issue.Status)

	entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
	gt.Number(t, countAction(entries, types.AuditActionUpdate)).Equal(1)
	gt.Number(t, countAction(entries, types.AuditActionAssignment)).Equal(1)

	for _, e := range entries {
		if e.Action == types.AuditActionUpdate {
			gt.Value(t, e.PreviousValue["title"]).Equal(issue.Title)
			gt.Value(t, e.NewValue["title"]).Equal(title)
			_, hasDescription := e.NewValue["description"]
			gt.Bool(t, hasDescription).False()
		}
	}

	t.Run("patch without changes records nothing", func(t *testing.T) {
		events := len(env.notifier.named(types.EventIssueUpdated))

		same, err := env.uc.Issue.UpdateIssueFields(env.ctx, env.admin, issue.ID, usecase.IssuePatch{
			Title:      &title,
			AssigneeID: &assigneeID,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, same.Title).Equal(title)

		entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
		gt.Number(t, countAction(entries, types.AuditActionUpdate)).Equal(1)
		gt.Number(t, countAction(entries, types.AuditActionAssignment)).Equal(1)
		gt.Array(t, env.notifier.named(types.EventIssueUpdated)).Length(events)
	})

	_, err = env.uc.Issue.UpdateIssueFields(env.ctx, env.admin, model.NewIssueID(), usecase.IssuePatch{Title: &title})
	gt.Error(t, err).Is(usecase.ErrIssueNotFound)
}

func TestIssueUseCase_DeleteIssue(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, types.RoleUser)
	issue := env.createIssue(t, user)

	err := env.uc.Issue.DeleteIssue(env.ctx, user, issue.ID)
	gt.Error(t, err).Is(usecase.ErrPermissionDenied)

	gt.NoError(t, env.uc.Issue.DeleteIssue(env.ctx, env.admin, issue.ID)).Required()

	_, err = env.uc.Issue.GetIssue(env.ctx, env.admin, issue.ID)
	gt.Error(t, err).Is(usecase.ErrIssueNotFound)

	entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
	gt.Number(t, countAction(entries, types.AuditActionDelete)).Equal(1)
	gt.Array(t, env.notifier.named(types.EventIssueDeleted)).Length(1)
}

func TestIssueUseCase_ListIssues(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.createIssue(t, env.admin)
	}
	critical := types.PriorityCritical
	_, err := env.uc.Issue.CreateIssue(env.ctx, env.admin, usecase.CreateIssueInput{
		Title:       "Sterility failure",
		Description: "Media fill failed",
		Category:    types.CategorySafety,
		Priority:    critical,
	})
	gt.NoError(t, err).Required()

	page, err := env.uc.Issue.ListIssues(env.ctx, env.admin, nil, 1, 4)
	gt.NoError(t, err).Required()
	gt.Array(t, page.Issues).Length(4)
	gt.Number(t, page.Total).Equal(6)
	gt.Number(t, page.TotalPages).Equal(2)

	filtered, err := env.uc.Issue.ListIssues(env.ctx, env.admin, &interfaces.IssueFilter{Priority: &critical}, 0, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, filtered.Issues).Length(1)
	gt.Number(t, filtered.PageSize).Equal(usecase.DefaultIssuePageSize)

	// another tenant sees none of them
	other := newTestEnv(t)
	empty, err := other.uc.Issue.ListIssues(other.ctx, other.admin, nil, 1, 10)
	gt.NoError(t, err).Required()
	gt.Number(t, empty.Total).Equal(0)
}

type memoryBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBlob) Put(ctx context.Context, key, contentType string, body io.Reader) (string, int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[key] = data
	return "mem://" + key, int64(len(data)), nil
}

func TestIssueUseCase_AddAttachment(t *testing.T) {
	blob := &memoryBlob{}
	env := newTestEnv(t, usecase.WithBlobStore(blob))
	issue := env.createIssue(t, env.admin)

	updated, err := env.uc.Issue.AddAttachment(env.ctx, env.admin, issue.ID, "../evidence.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.7")))
	gt.NoError(t, err).Required()
	gt.Array(t, updated.Attachments).Length(1).Required()

	att := updated.Attachments[0]
	gt.Value(t, att.Filename).Equal("evidence.pdf")
	gt.Number(t, att.Size).Equal(8)
	gt.Bool(t, strings.HasPrefix(att.URL, "mem://"+string(env.org.ID)+"/"+string(issue.ID)+"/")).True()

	t.Run("without blob storage", func(t *testing.T) {
		bare := newTestEnv(t)
		i := bare.createIssue(t, bare.admin)
		_, err := bare.uc.Issue.AddAttachment(bare.ctx, bare.admin, i.ID, "a.txt", "text/plain", strings.NewReader("x"))
		gt.Error(t, err).Is(usecase.ErrInvalidInput)
	})
}
