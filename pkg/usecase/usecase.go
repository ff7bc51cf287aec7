package usecase

import (
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/service/summary"
)

// DefaultWorkflowCacheTTL bounds how long a resolved workflow is served from memory
const DefaultWorkflowCacheTTL = 30 * time.Second

type UseCases struct {
	repo interfaces.Repository

	notifier         interfaces.Notifier
	summarizer       interfaces.Summarizer
	blob             interfaces.BlobStore
	workflowCacheTTL time.Duration
	authKey          []byte
	tokenTTL         time.Duration
	template         *model.Workflow
	authOptions      []AuthOption
	clock            func() time.Time

	Audit    *AuditUseCase
	Workflow *WorkflowUseCase
	Issue    *IssueUseCase
	SLA      *SLAUseCase
	Summary  *SummaryUseCase
	Auth     *AuthUseCase
}

type Option func(*UseCases)

// WithNotifier sets the sink realtime events are published to
func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

// WithSummarizer sets the AI summary generator. Without one, summaries come from the mock fallback.
func WithSummarizer(s interfaces.Summarizer) Option {
	return func(uc *UseCases) {
		uc.summarizer = s
	}
}

// WithBlobStore sets where issue attachments are written
func WithBlobStore(b interfaces.BlobStore) Option {
	return func(uc *UseCases) {
		uc.blob = b
	}
}

// WithWorkflowCacheTTL sets how long active workflows are cached per organization. 0 disables the cache.
func WithWorkflowCacheTTL(ttl time.Duration) Option {
	return func(uc *UseCases) {
		uc.workflowCacheTTL = ttl
	}
}

// WithAuthKey sets the HMAC key session tokens are signed with
func WithAuthKey(key []byte) Option {
	return func(uc *UseCases) {
		uc.authKey = key
	}
}

// WithTokenTTL sets the lifetime of issued session tokens
func WithTokenTTL(ttl time.Duration) Option {
	return func(uc *UseCases) {
		uc.tokenTTL = ttl
	}
}

// WithWorkflowTemplate replaces the workflow installed for newly registered organizations
func WithWorkflowTemplate(wf *model.Workflow) Option {
	return func(uc *UseCases) {
		uc.template = wf
	}
}

// WithAuthOptions passes options through to the auth use case
func WithAuthOptions(opts ...AuthOption) Option {
	return func(uc *UseCases) {
		uc.authOptions = append(uc.authOptions, opts...)
	}
}

// WithClock replaces the wall clock of every use case
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

// New wires every use case on top of repo
func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:             repo,
		workflowCacheTTL: DefaultWorkflowCacheTTL,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.summarizer == nil {
		uc.summarizer = summary.New(nil)
	}

	uc.Audit = NewAuditUseCase(repo)
	uc.Workflow = NewWorkflowUseCase(repo, uc.Audit, uc.workflowCacheTTL)
	uc.Issue = NewIssueUseCase(repo, uc.Workflow, uc.Audit, uc.notifier, uc.blob)
	uc.SLA = NewSLAUseCase(repo, uc.Workflow, uc.Audit, uc.notifier)
	uc.Summary = NewSummaryUseCase(repo, uc.summarizer, uc.Audit)

	authOpts := uc.authOptions
	if uc.clock != nil {
		authOpts = append(authOpts, WithAuthClock(uc.clock))
		uc.Audit.clock = uc.clock
		uc.Issue.clock = uc.clock
		uc.SLA.clock = uc.clock
		uc.Summary.clock = uc.clock
	}
	uc.Auth = NewAuthUseCase(repo, uc.Workflow, uc.Audit, uc.authKey, uc.tokenTTL, uc.template, authOpts...)

	return uc
}
