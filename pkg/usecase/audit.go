package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/errutil"
	"github.com/secmon-lab/compliflow/pkg/utils/metrics"
)

// Audit query page sizes
const (
	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 200
)

// AuditUseCase is the ledger every state-changing operation writes to
type AuditUseCase struct {
	repo  interfaces.Repository
	clock func() time.Time
}

// NewAuditUseCase creates the audit ledger use case
func NewAuditUseCase(repo interfaces.Repository) *AuditUseCase {
	return &AuditUseCase{
		repo:  repo,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry after the primary write has committed. A failure is logged
// and counted but never returned, so the audited operation is unaffected.
func (uc *AuditUseCase) Record(ctx context.Context, entry *model.AuditLogEntry) {
	if entry.ID == "" {
		entry.ID = model.NewAuditLogID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = uc.clock()
	}
	info := auth.ClientInfoFromContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = info.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = info.UserAgent
	}

	if err := uc.repo.AuditLog().Append(ctx, entry); err != nil {
		metrics.AuditAppendFailures.Inc()
		errutil.Handle(ctx, goerr.Wrap(err, "failed to append audit log",
			goerr.V("action", entry.Action),
			goerr.V("entity", entry.Entity),
			goerr.V("entity_id", entry.EntityID),
			goerr.V(OrganizationIDKey, entry.OrganizationID),
		), "audit log append failed")
	}
}

// record builds an entry attributed to actor within the actor's organization
func (uc *AuditUseCase) record(ctx context.Context, actor *auth.Actor, action types.AuditAction, entity types.EntityKind, entityID string, prev, next model.Snapshot) {
	uc.Record(ctx, &model.AuditLogEntry{
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		PreviousValue:  prev,
		NewValue:       next,
		PerformedBy:    actor.UserID,
		OrganizationID: actor.OrganizationID,
	})
}

// AuditQuery narrows Query. The organization is always the caller's.
type AuditQuery struct {
	Entity      types.EntityKind
	EntityID    string
	Action      types.AuditAction
	PerformedBy model.UserID
	From        *time.Time
	To          *time.Time
}

// Query returns one page of the caller's organization ledger, newest first. Admin and Manager only.
func (uc *AuditUseCase) Query(ctx context.Context, actor *auth.Actor, q AuditQuery, page, pageSize int) (*model.AuditLogPage, error) {
	if !actor.HasRole(types.RoleAdmin, types.RoleManager) {
		return nil, goerr.Wrap(ErrPermissionDenied, "audit log requires Admin or Manager", goerr.V(RoleKey, actor.Role))
	}
	if q.Entity != "" && !q.Entity.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid entity kind", goerr.V("entity", q.Entity))
	}
	if q.Action != "" && !q.Action.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid audit action", goerr.V("action", q.Action))
	}

	page, pageSize = normalizePage(page, pageSize, DefaultAuditPageSize, MaxAuditPageSize)
	filter := interfaces.AuditFilter{
		OrganizationID: actor.OrganizationID,
		Entity:         q.Entity,
		EntityID:       q.EntityID,
		Action:         q.Action,
		PerformedBy:    q.PerformedBy,
		From:           q.From,
		To:             q.To,
	}

	entries, total, err := uc.repo.AuditLog().Query(ctx, filter, page, pageSize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query audit log")
	}

	return &model.AuditLogPage{
		Entries:    entries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// ForEntity returns every entry of one entity in the caller's organization, newest first
func (uc *AuditUseCase) ForEntity(ctx context.Context, actor *auth.Actor, entity types.EntityKind, entityID string) ([]*model.AuditLogEntry, error) {
	if !entity.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid entity kind", goerr.V("entity", entity))
	}

	entries, err := uc.repo.AuditLog().ListByEntity(ctx, actor.OrganizationID, entity, entityID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list audit log for entity",
			goerr.V("entity", entity), goerr.V("entity_id", entityID))
	}
	return entries, nil
}

func normalizePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
