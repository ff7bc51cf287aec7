package summary_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/mock"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/service/summary"
)

var input = interfaces.SummaryInput{
	Title:       "Batch record missing signature",
	Description: "Second-person verification absent on lot 42",
	Category:    "Quality",
	Priority:    "Critical",
}

func newLLM(generate func(ctx context.Context, in ...gollem.Input) (*gollem.Response, error)) *mock.LLMClientMock {
	return &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mock.SessionMock{GenerateContentFunc: generate}, nil
		},
	}
}

func TestGenerate_NilLLMUsesFallback(t *testing.T) {
	s := summary.New(nil)
	result := s.Generate(context.Background(), input)

	gt.V(t, result.Model).Equal(summary.FallbackModel)
	gt.NoError(t, result.Err)
	gt.String(t, result.Summary).Contains(input.Title)
	gt.String(t, result.Summary).Contains("quality compliance gaps")
	gt.String(t, result.Summary).Contains("potential regulatory action")
}

func TestGenerate_FallbackIsDeterministic(t *testing.T) {
	s := summary.New(nil)
	a := s.Generate(context.Background(), input)
	b := s.Generate(context.Background(), input)
	gt.V(t, a.Summary).Equal(b.Summary)
}

func TestGenerate_UsesLLMResponse(t *testing.T) {
	var prompt string
	llm := newLLM(func(ctx context.Context, in ...gollem.Input) (*gollem.Response, error) {
		prompt = string(in[0].(gollem.Text))
		return &gollem.Response{Texts: []string{"  Root cause: missing training.  "}}, nil
	})

	s := summary.New(llm, summary.WithModelName("gemini-2.5-flash"))
	result := s.Generate(context.Background(), input)

	gt.NoError(t, result.Err)
	gt.V(t, result.Model).Equal("gemini-2.5-flash")
	gt.V(t, result.Summary).Equal("Root cause: missing training.")
	gt.String(t, prompt).Contains("Issue Title: Batch record missing signature")
	gt.String(t, prompt).Contains("Priority: Critical")
}

func TestGenerate_LLMErrorFallsBack(t *testing.T) {
	llm := newLLM(func(ctx context.Context, in ...gollem.Input) (*gollem.Response, error) {
		return nil, errors.New("quota exceeded")
	})

	result := summary.New(llm).Generate(context.Background(), input)
	gt.V(t, result.Model).Equal(summary.FallbackModel)
	gt.Error(t, result.Err)
	gt.String(t, result.Err.Error()).Contains("quota exceeded")
	gt.B(t, len(result.Summary) > 0).True()
}

func TestGenerate_EmptyResponseFallsBack(t *testing.T) {
	llm := newLLM(func(ctx context.Context, in ...gollem.Input) (*gollem.Response, error) {
		return &gollem.Response{Texts: []string{"   "}}, nil
	})

	result := summary.New(llm).Generate(context.Background(), input)
	gt.V(t, result.Model).Equal(summary.FallbackModel)
	gt.Error(t, result.Err)
}

func TestGenerate_TimeoutFallsBack(t *testing.T) {
	llm := newLLM(func(ctx context.Context, in ...gollem.Input) (*gollem.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	started := time.Now()
	result := summary.New(llm, summary.WithTimeout(20*time.Millisecond)).Generate(context.Background(), input)

	gt.V(t, result.Model).Equal(summary.FallbackModel)
	gt.Error(t, result.Err).Is(context.DeadlineExceeded)
	gt.B(t, time.Since(started) < 5*time.Second).True()
}

func TestGenerate_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}
	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()
	llm, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	result := summary.New(llm).Generate(ctx, input)
	gt.NoError(t, result.Err)
	gt.V(t, result.Model).NotEqual(summary.FallbackModel)
}
