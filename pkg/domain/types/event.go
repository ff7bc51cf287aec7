package types

// EventName is the name of a real-time event broadcast to a tenant room
type EventName string

const (
	EventIssueCreated      EventName = "issue:created"
	EventIssueUpdated      EventName = "issue:updated"
	EventIssueTransitioned EventName = "issue:transitioned"
	EventIssueDeleted      EventName = "issue:deleted"
	EventSLABreach         EventName = "sla:breach"
)

func (e EventName) String() string {
	return string(e)
}
