package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// auditLogRepository has no update or delete path. Stored entries are private copies,
// so a caller mutating a returned entry cannot change the ledger.
type auditLogRepository struct {
	mu      sync.RWMutex
	entries []*model.AuditLogEntry
	ids     map[model.AuditLogID]struct{}
}

func newAuditLogRepository() *auditLogRepository {
	return &auditLogRepository{
		ids: make(map[model.AuditLogID]struct{}),
	}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := entry.Copy()
	if stored.ID == "" {
		stored.ID = model.NewAuditLogID()
	}
	if _, exists := r.ids[stored.ID]; exists {
		return goerr.Wrap(model.ErrAuditImmutable, "audit log entry already exists", goerr.V("id", stored.ID))
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	r.ids[stored.ID] = struct{}{}
	r.entries = append(r.entries, stored)
	return nil
}

// newestFirst orders by timestamp descending, then by id descending
func newestFirst(entries []*model.AuditLogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func (r *auditLogRepository) Query(ctx context.Context, filter interfaces.AuditFilter, page, pageSize int) ([]*model.AuditLogEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.AuditLogEntry, 0)
	for _, e := range r.entries {
		if filter.Match(e) {
			matched = append(matched, e)
		}
	}
	newestFirst(matched)

	paged := paginate(matched, page, pageSize)
	result := make([]*model.AuditLogEntry, len(paged))
	for i, e := range paged {
		result[i] = e.Copy()
	}
	return result, len(matched), nil
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, orgID model.OrganizationID, entity types.EntityKind, entityID string) ([]*model.AuditLogEntry, error) {
	filter := interfaces.AuditFilter{
		OrganizationID: orgID,
		Entity:         entity,
		EntityID:       entityID,
	}
	entries, _, err := r.Query(ctx, filter, 1, 0)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
