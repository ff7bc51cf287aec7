package model

import (
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// Event is a real-time notification scoped to one organization
type Event struct {
	OrganizationID OrganizationID  `json:"organizationId"`
	Name           types.EventName `json:"event"`
	Payload        any             `json:"payload"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// RoomKey returns the room the event is broadcast to
func (e *Event) RoomKey() string {
	return RoomKey(e.OrganizationID)
}

// IssueTransitionedPayload is broadcast as issue:transitioned
type IssueTransitionedPayload struct {
	IssueID        IssueID `json:"issueId"`
	PreviousStatus string  `json:"previousStatus"`
	NewStatus      string  `json:"newStatus"`
	PerformedBy    string  `json:"performedBy"`
}

// IssueDeletedPayload is broadcast as issue:deleted
type IssueDeletedPayload struct {
	IssueID IssueID `json:"issueId"`
}

// SLABreachPayload is broadcast as sla:breach
type SLABreachPayload struct {
	IssueID    IssueID   `json:"issueId"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"dueDate"`
	BreachedAt time.Time `json:"breachedAt"`
}
