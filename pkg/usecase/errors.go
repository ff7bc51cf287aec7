package usecase

import (
	"errors"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	// Not found errors. Each variant wraps ErrNotFound.
	ErrNotFound             = errors.New("not found")
	ErrIssueNotFound        = notFound("issue not found")
	ErrWorkflowNotFound     = notFound("workflow not found")
	ErrUserNotFound         = notFound("user not found")
	ErrOrganizationNotFound = notFound("organization not found")

	// Workflow errors
	ErrInvalidWorkflowDefinition   = model.ErrInvalidWorkflowDefinition
	ErrNoActiveWorkflow            = errors.New("no active workflow")
	ErrIllegalTransition           = errors.New("illegal transition")
	ErrRoleNotAuthorized           = errors.New("role not authorized for transition")
	ErrCannotDeleteDefaultWorkflow = errors.New("cannot delete default workflow")
	ErrConcurrentModification      = errors.New("concurrent modification")

	// Registry errors
	ErrDuplicateEmail            = errors.New("email already registered")
	ErrDuplicateOrganizationName = errors.New("organization name already exists")

	// Access control errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")

	// Other errors
	ErrInvalidInput = errors.New("invalid input")
)

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }
func (e *notFoundError) Unwrap() error { return ErrNotFound }

func notFound(msg string) error {
	return &notFoundError{msg: msg}
}

// Context keys for error values
const (
	OrganizationIDKey = "organization_id"
	IssueIDKey        = "issue_id"
	WorkflowIDKey     = "workflow_id"
	UserIDKey         = "user_id"
	FieldKey          = model.InvalidFieldKey
	FromStateKey      = model.FromStateKey
	ToStateKey        = model.ToStateKey
	RoleKey           = "role"
)

// Kind returns the stable machine-checkable name of err's failure class
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidWorkflowDefinition):
		return "InvalidWorkflowDefinition"
	case errors.Is(err, ErrNoActiveWorkflow):
		return "NoActiveWorkflow"
	case errors.Is(err, ErrIllegalTransition):
		return "IllegalTransition"
	case errors.Is(err, ErrRoleNotAuthorized):
		return "RoleNotAuthorized"
	case errors.Is(err, ErrCannotDeleteDefaultWorkflow):
		return "CannotDeleteDefaultWorkflow"
	case errors.Is(err, ErrConcurrentModification):
		return "ConcurrentModification"
	case errors.Is(err, ErrDuplicateEmail):
		return "DuplicateEmail"
	case errors.Is(err, ErrDuplicateOrganizationName):
		return "DuplicateOrganizationName"
	case errors.Is(err, ErrInvalidCredentials):
		return "InvalidCredentials"
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, model.ErrAuditImmutable):
		return "AuditImmutabilityViolation"
	default:
		return "Internal"
	}
}
