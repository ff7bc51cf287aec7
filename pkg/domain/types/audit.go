package types

import "fmt"

// AuditAction is the kind of state-changing action recorded in the audit ledger
type AuditAction string

const (
	AuditActionCreate             AuditAction = "CREATE"
	AuditActionUpdate             AuditAction = "UPDATE"
	AuditActionDelete             AuditAction = "DELETE"
	AuditActionStatusChange       AuditAction = "STATUS_CHANGE"
	AuditActionAssignment         AuditAction = "ASSIGNMENT"
	AuditActionWorkflowTransition AuditAction = "WORKFLOW_TRANSITION"
	AuditActionAISummaryGenerated AuditAction = "AI_SUMMARY_GENERATED"
	AuditActionSLABreach          AuditAction = "SLA_BREACH"
	AuditActionLogin              AuditAction = "LOGIN"
	AuditActionRegister           AuditAction = "REGISTER"
)

// AllAuditActions returns all valid audit actions
func AllAuditActions() []AuditAction {
	return []AuditAction{
		AuditActionCreate,
		AuditActionUpdate,
		AuditActionDelete,
		AuditActionStatusChange,
		AuditActionAssignment,
		AuditActionWorkflowTransition,
		AuditActionAISummaryGenerated,
		AuditActionSLABreach,
		AuditActionLogin,
		AuditActionRegister,
	}
}

// IsValid checks if the audit action is valid
func (a AuditAction) IsValid() bool {
	for _, v := range AllAuditActions() {
		if a == v {
			return true
		}
	}
	return false
}

// String returns the string representation of the audit action
func (a AuditAction) String() string {
	return string(a)
}

// ParseAuditAction parses a string into an AuditAction
func ParseAuditAction(s string) (AuditAction, error) {
	action := AuditAction(s)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid audit action: %s", s)
	}
	return action, nil
}

// EntityKind identifies the kind of entity an audit entry refers to
type EntityKind string

const (
	EntityIssue        EntityKind = "Issue"
	EntityWorkflow     EntityKind = "Workflow"
	EntityUser         EntityKind = "User"
	EntityOrganization EntityKind = "Organization"
)

// IsValid checks if the entity kind is valid
func (e EntityKind) IsValid() bool {
	switch e {
	case EntityIssue, EntityWorkflow, EntityUser, EntityOrganization:
		return true
	default:
		return false
	}
}

// String returns the string representation of the entity kind
func (e EntityKind) String() string {
	return string(e)
}

// ParseEntityKind parses a string into an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	kind := EntityKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid entity kind: %s", s)
	}
	return kind, nil
}
