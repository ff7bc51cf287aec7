package model

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

var (
	auditEntropyMu sync.Mutex
	auditEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// AuditLogID is a ULID, so lexical order follows creation order
type AuditLogID string

// NewAuditLogID generates a new monotonic AuditLogID
func NewAuditLogID() AuditLogID {
	auditEntropyMu.Lock()
	defer auditEntropyMu.Unlock()
	return AuditLogID(ulid.MustNew(ulid.Timestamp(time.Now()), auditEntropy).String())
}

// Snapshot is a loosely typed document of recorded field values. The recorded
// fields vary by action kind, so it is preserved verbatim.
type Snapshot map[string]any

// Copy returns a deep copy of the snapshot, including nested documents and arrays
func (s Snapshot) Copy() Snapshot {
	if s == nil {
		return nil
	}
	copied := make(Snapshot, len(s))
	for k, v := range s {
		copied[k] = copyValue(v)
	}
	return copied
}

func copyValue(v any) any {
	switch t := v.(type) {
	case Snapshot:
		return t.Copy()
	case map[string]any:
		return map[string]any(Snapshot(t).Copy())
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = copyValue(t[i])
		}
		return arr
	case []string:
		arr := make([]string, len(t))
		copy(arr, t)
		return arr
	default:
		return v
	}
}

// AuditLogEntry is an immutable record of one state-changing action
type AuditLogEntry struct {
	ID             AuditLogID        `json:"id"`
	Action         types.AuditAction `json:"action"`
	Entity         types.EntityKind  `json:"entity"`
	EntityID       string            `json:"entityId"`
	PreviousValue  Snapshot          `json:"previousValue,omitempty"`
	NewValue       Snapshot          `json:"newValue,omitempty"`
	PerformedBy    UserID            `json:"performedBy"`
	OrganizationID OrganizationID    `json:"organizationId"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Copy returns a deep copy of the entry
func (e *AuditLogEntry) Copy() *AuditLogEntry {
	copied := *e
	copied.PreviousValue = e.PreviousValue.Copy()
	copied.NewValue = e.NewValue.Copy()
	return &copied
}

// AuditLogPage is one page of audit entries
type AuditLogPage struct {
	Entries    []*AuditLogEntry `json:"entries"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
