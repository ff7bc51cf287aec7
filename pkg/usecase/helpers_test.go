package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/repository/memory"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, ev model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) named(name types.EventName) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, ev := range n.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	model string
	err   error
}

func (s *fakeSummarizer) Generate(ctx context.Context, input interfaces.SummaryInput) interfaces.SummaryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	name := s.model
	if name == "" {
		name = "fake-model"
	}
	return interfaces.SummaryResult{
		Summary: "Root cause of " + input.Title,
		Model:   name,
		Err:     s.err,
	}
}

type testEnv struct {
	ctx      context.Context
	repo     *memory.Memory
	uc       *usecase.UseCases
	notifier *recordingNotifier
	clock    *fakeClock
	org      *model.Organization
	admin    *auth.Actor
}

func newTestEnv(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, memory.New(), opts...)
}

func newTestEnvWithRepo(t *testing.T, repo interfaces.Repository, opts ...usecase.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		ctx:      context.Background(),
		notifier: &recordingNotifier{},
		clock:    newFakeClock(),
	}
	if m, ok := repo.(*memory.Memory); ok {
		env.repo = m
	}

	base := []usecase.Option{
		usecase.WithNotifier(env.notifier),
		usecase.WithAuthKey([]byte("test-signing-key-0123456789abcdef")),
		usecase.WithClock(env.clock.Now),
		usecase.WithWorkflowCacheTTL(time.Minute),
		usecase.WithAuthOptions(usecase.WithBcryptCost(bcrypt.MinCost)),
	}
	env.uc = usecase.New(repo, append(base, opts...)...)

	session, err := env.uc.Auth.Register(env.ctx, usecase.RegisterInput{
		Name:             "Alice Admin",
		Email:            "alice-" + uuid.NewString()[:8] + "@example.com",
		Password:         testPassword,
		OrganizationName: "Acme " + uuid.NewString()[:8],
		Industry:         types.IndustryPharma,
	})
	gt.NoError(t, err).Required()

	env.org = session.Organization
	env.admin = auth.NewActor(session.User)
	return env
}

func (e *testEnv) addUser(t *testing.T, role types.Role) *auth.Actor {
	t.Helper()
	user, err := e.uc.Auth.CreateUser(e.ctx, e.admin, usecase.CreateUserInput{
		Name:     string(role) + " user",
		Email:    "user-" + uuid.NewString()[:8] + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	gt.NoError(t, err).Required()
	return auth.NewActor(user)
}

func (e *testEnv) createIssue(t *testing.T, actor *auth.Actor) *model.Issue {
	t.Helper()
	issue, err := e.uc.Issue.CreateIssue(e.ctx, actor, usecase.CreateIssueInput{
		Title:       "Deviation in cleanroom pressure",
		Description: "Differential pressure dropped below limit for 12 minutes",
		Category:    types.CategoryQuality,
		Priority:    types.PriorityHigh,
	})
	gt.NoError(t, err).Required()
	return issue
}

func (e *testEnv) auditFor(t *testing.T, entity types.EntityKind, id string) []*model.AuditLogEntry {
	t.Helper()
	entries, err := e.uc.Audit.ForEntity(e.ctx, e.admin, entity, id)
	gt.NoError(t, err).Required()
	return entries
}

func countAction(entries []*model.AuditLogEntry, action types.AuditAction) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// failingAuditRepository wraps a repository so every audit append fails
type failingAuditRepository struct {
	*memory.Memory
}

func (r *failingAuditRepository) AuditLog() interfaces.AuditLogRepository {
	return failingAuditLog{}
}

type failingAuditLog struct{}

func (failingAuditLog) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	return context.DeadlineExceeded
}

func (failingAuditLog) Query(ctx context.Context, filter interfaces.AuditFilter, page, pageSize int) ([]*model.AuditLogEntry, int, error) {
	return nil, 0, nil
}

func (failingAuditLog) ListByEntity(ctx context.Context, orgID model.OrganizationID, entity types.EntityKind, entityID string) ([]*model.AuditLogEntry, error) {
	return nil, nil
}

func ptr[T any](v T) *T {
	return &v
}
