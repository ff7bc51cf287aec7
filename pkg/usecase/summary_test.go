package usecase_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/service/summary"
	"github.com/secmon-lab/compliflow/pkg/usecase"
)

func TestSummaryUseCase_VersionsIncrease(t *testing.T) {
	summarizer := &fakeSummarizer{model: "gemini-test"}
	env := newTestEnv(t, usecase.WithSummarizer(summarizer))
	issue := env.createIssue(t, env.admin)

	for want := 1; want <= 3; want++ {
		s, err := env.uc.Summary.Generate(env.ctx, env.admin, issue.ID)
		gt.NoError(t, err).Required()
		gt.Number(t, s.Version).Equal(want)
		gt.Value(t, s.Model).Equal("gemini-test")
		gt.Value(t, s.GeneratedAt).Equal(env.clock.Now())
	}

	list, err := env.uc.Summary.List(env.ctx, env.admin, issue.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, list).Length(3).Required()
	gt.Number(t, list[0].Version).Equal(3)
	gt.Number(t, list[2].Version).Equal(1)

	entries := env.auditFor(t, types.EntityIssue, string(issue.ID))
	gt.Number(t, countAction(entries, types.AuditActionAISummaryGenerated)).Equal(3)
}

func TestSummaryUseCase_ConcurrentGenerate(t *testing.T) {
	env := newTestEnv(t, usecase.WithSummarizer(&fakeSummarizer{}))
	issue := env.createIssue(t, env.admin)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.uc.Summary.Generate(env.ctx, env.admin, issue.ID)
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.uc.Issue.GetIssue(env.ctx, env.admin, issue.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, got.AISummaries).Length(n).Required()

	seen := make(map[int]bool)
	for _, s := range got.AISummaries {
		gt.Bool(t, seen[s.Version]).False()
		seen[s.Version] = true
	}
	for v := 1; v <= n; v++ {
		gt.Bool(t, seen[v]).True()
	}
}

func TestSummaryUseCase_FallbackIsStored(t *testing.T) {
	summarizer := &fakeSummarizer{model: summary.FallbackModel, err: errors.New("llm unavailable")}
	env := newTestEnv(t, usecase.WithSummarizer(summarizer))
	issue := env.createIssue(t, env.admin)

	s, err := env.uc.Summary.Generate(env.ctx, env.admin, issue.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, s.Model).Equal(summary.FallbackModel)
	gt.Number(t, s.Version).Equal(1)
}

func TestSummaryUseCase_DefaultSummarizer(t *testing.T) {
	env := newTestEnv(t)
	issue := env.createIssue(t, env.admin)

	s, err := env.uc.Summary.Generate(env.ctx, env.admin, issue.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, s.Model).Equal(summary.FallbackModel)
	gt.String(t, s.Summary).Contains(issue.Title)
}

func TestSummaryUseCase_UnknownIssue(t *testing.T) {
	summarizer := &fakeSummarizer{}
	env := newTestEnv(t, usecase.WithSummarizer(summarizer))

	_, err := env.uc.Summary.Generate(env.ctx, env.admin, model.NewIssueID())
	gt.Error(t, err).Is(usecase.ErrIssueNotFound)
	gt.Number(t, summarizer.calls).Equal(0)
}
