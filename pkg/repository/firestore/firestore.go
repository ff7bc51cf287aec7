package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
)

// Repository errors, shared with every backend so callers can match either
var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrConflict  = interfaces.ErrConflict
	ErrDuplicate = interfaces.ErrDuplicate
)

// Collection names
const (
	collectionOrganizations = "organizations"
	collectionUsers         = "users"
	collectionWorkflows     = "workflows"
	collectionIssues        = "issues"
	collectionAuditLogs     = "audit_logs"
)

// base is shared by every collection repository of one Firestore instance
type base struct {
	client           *firestore.Client
	collectionPrefix string
}

func (b *base) collection(name string) *firestore.CollectionRef {
	if b.collectionPrefix != "" {
		return b.client.Collection(b.collectionPrefix + "_" + name)
	}
	return b.client.Collection(name)
}

type Firestore struct {
	base         *base
	organization *organizationRepository
	user         *userRepository
	workflow     *workflowRepository
	issue        *issueRepository
	auditLog     *auditLogRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix isolates collections, e.g. per test run
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.base.collectionPrefix = prefix
	}
}

// New connects to the Firestore database. An empty databaseID selects the default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	b := &base{client: client}
	f := &Firestore{
		base:         b,
		organization: &organizationRepository{base: b},
		user:         &userRepository{base: b},
		workflow:     &workflowRepository{base: b},
		issue:        &issueRepository{base: b},
		auditLog:     &auditLogRepository{base: b},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Organization() interfaces.OrganizationRepository {
	return f.organization
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Workflow() interfaces.WorkflowRepository {
	return f.workflow
}

func (f *Firestore) Issue() interfaces.IssueRepository {
	return f.issue
}

func (f *Firestore) AuditLog() interfaces.AuditLogRepository {
	return f.auditLog
}

func (f *Firestore) Close() error {
	if f.base.client != nil {
		return f.base.client.Close()
	}
	return nil
}
