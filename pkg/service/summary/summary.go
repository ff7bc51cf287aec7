package summary

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
)

const (
	// FallbackModel is reported as the model of summaries produced without an LLM
	FallbackModel = "mock-fallback"

	// DefaultTimeout bounds a single LLM call
	DefaultTimeout = 30 * time.Second

	defaultModelName = "gemini"
)

//go:embed prompt/summary.md
var summaryPromptTmpl string

//go:embed prompt/fallback.md
var fallbackTmpl string

var (
	summaryPrompt = template.Must(template.New("summary").Parse(summaryPromptTmpl))
	fallbackText  = template.Must(template.New("fallback").
			Funcs(template.FuncMap{"lower": strings.ToLower}).
			Parse(fallbackTmpl))
)

// Summarizer produces root-cause summaries with an LLM and falls back to a
// deterministic text when the LLM is missing, slow or failing.
type Summarizer struct {
	llm       gollem.LLMClient
	timeout   time.Duration
	modelName string
}

var _ interfaces.Summarizer = (*Summarizer)(nil)

// Option is a functional option for Summarizer
type Option func(*Summarizer)

// WithTimeout overrides DefaultTimeout. A non-positive d keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithModelName sets the model id recorded on generated summaries
func WithModelName(name string) Option {
	return func(s *Summarizer) {
		s.modelName = name
	}
}

// New creates a Summarizer. A nil llm makes every summary a fallback.
func New(llm gollem.LLMClient, opts ...Option) *Summarizer {
	s := &Summarizer{
		llm:       llm,
		timeout:   DefaultTimeout,
		modelName: defaultModelName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate never fails. On fallback, Err carries the reason.
func (s *Summarizer) Generate(ctx context.Context, input interfaces.SummaryInput) interfaces.SummaryResult {
	if s.llm == nil {
		return fallback(input, nil)
	}

	text, err := s.generate(ctx, input)
	if err != nil {
		logging.From(ctx).Warn("LLM summary failed, using fallback", "error", err.Error())
		return fallback(input, err)
	}

	return interfaces.SummaryResult{
		Summary: text,
		Model:   s.modelName,
	}
}

func (s *Summarizer) generate(ctx context.Context, input interfaces.SummaryInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var prompt bytes.Buffer
	if err := summaryPrompt.Execute(&prompt, input); err != nil {
		return "", goerr.Wrap(err, "failed to render summary prompt")
	}

	session, err := s.llm.NewSession(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt.String()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	text := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if text == "" {
		return "", goerr.New("LLM returned an empty summary")
	}
	return text, nil
}

type fallbackData struct {
	interfaces.SummaryInput
	Urgent         bool
	RegulatoryRisk string
}

func fallback(input interfaces.SummaryInput, reason error) interfaces.SummaryResult {
	data := fallbackData{SummaryInput: input}
	switch types.Priority(input.Priority) {
	case types.PriorityCritical:
		data.Urgent = true
		data.RegulatoryRisk = "High, potential regulatory action"
	case types.PriorityHigh:
		data.Urgent = true
		data.RegulatoryRisk = "Moderate, requires prompt remediation"
	default:
		data.RegulatoryRisk = "Low to Moderate"
	}

	var buf bytes.Buffer
	// Only fails on a broken template, which template.Must has already ruled out
	_ = fallbackText.Execute(&buf, data)

	return interfaces.SummaryResult{
		Summary: buf.String(),
		Model:   FallbackModel,
		Err:     reason,
	}
}
