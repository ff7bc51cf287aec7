package memory

import (
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
)

// Repository errors, shared with every backend so callers can match either
var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrConflict  = interfaces.ErrConflict
	ErrDuplicate = interfaces.ErrDuplicate
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	organization *organizationRepository
	user         *userRepository
	workflow     *workflowRepository
	issue        *issueRepository
	auditLog     *auditLogRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		organization: newOrganizationRepository(),
		user:         newUserRepository(),
		workflow:     newWorkflowRepository(),
		issue:        newIssueRepository(),
		auditLog:     newAuditLogRepository(),
	}
}

func (m *Memory) Organization() interfaces.OrganizationRepository {
	return m.organization
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Workflow() interfaces.WorkflowRepository {
	return m.workflow
}

func (m *Memory) Issue() interfaces.IssueRepository {
	return m.issue
}

func (m *Memory) AuditLog() interfaces.AuditLogRepository {
	return m.auditLog
}

func (m *Memory) Close() error {
	return nil
}
