package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// AuditFilter is an intersection of the set fields. Zero values are not applied.
type AuditFilter struct {
	OrganizationID model.OrganizationID
	Entity         types.EntityKind
	EntityID       string
	Action         types.AuditAction
	PerformedBy    model.UserID
	From           *time.Time
	To             *time.Time
}

// Match reports whether entry satisfies the filter. The time range is inclusive.
func (f *AuditFilter) Match(entry *model.AuditLogEntry) bool {
	if f.OrganizationID != "" && entry.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Entity != "" && entry.Entity != f.Entity {
		return false
	}
	if f.EntityID != "" && entry.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.PerformedBy != "" && entry.PerformedBy != f.PerformedBy {
		return false
	}
	if f.From != nil && entry.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && entry.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// AuditLogRepository is append-only. Entries cannot be updated or deleted through it.
type AuditLogRepository interface {
	// Append stores a new entry. An entry whose ID already exists fails with model.ErrAuditImmutable.
	Append(ctx context.Context, entry *model.AuditLogEntry) error

	// Query returns one page of matching entries, newest first, and the total number of matches
	Query(ctx context.Context, filter AuditFilter, page, pageSize int) ([]*model.AuditLogEntry, int, error)

	// ListByEntity returns every entry for one entity, newest first
	ListByEntity(ctx context.Context, orgID model.OrganizationID, entity types.EntityKind, entityID string) ([]*model.AuditLogEntry, error)
}
