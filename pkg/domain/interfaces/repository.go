package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Organization() OrganizationRepository
	User() UserRepository
	Workflow() WorkflowRepository
	Issue() IssueRepository
	AuditLog() AuditLogRepository

	Close() error
}
