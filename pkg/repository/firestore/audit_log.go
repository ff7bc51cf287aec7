package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// auditLogRepository only creates documents. Existing documents are never written.
type auditLogRepository struct {
	*base
}

func (r *auditLogRepository) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	stored := entry.Copy()
	if stored.ID == "" {
		stored.ID = model.NewAuditLogID()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	if _, err := r.collection(collectionAuditLogs).Doc(string(stored.ID)).Create(ctx, stored); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(model.ErrAuditImmutable, "audit log entry already exists", goerr.V("id", stored.ID))
		}
		return goerr.Wrap(err, "failed to append audit log entry", goerr.V("id", stored.ID))
	}
	return nil
}

func (r *auditLogRepository) buildQuery(filter interfaces.AuditFilter) firestore.Query {
	query := r.collection(collectionAuditLogs).Query
	if filter.OrganizationID != "" {
		query = query.Where("OrganizationID", "==", string(filter.OrganizationID))
	}
	if filter.Entity != "" {
		query = query.Where("Entity", "==", string(filter.Entity))
	}
	if filter.EntityID != "" {
		query = query.Where("EntityID", "==", filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("Action", "==", string(filter.Action))
	}
	if filter.PerformedBy != "" {
		query = query.Where("PerformedBy", "==", string(filter.PerformedBy))
	}
	if filter.From != nil {
		query = query.Where("Timestamp", ">=", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("Timestamp", "<=", *filter.To)
	}
	return query
}

func (r *auditLogRepository) collect(iter *firestore.DocumentIterator) ([]*model.AuditLogEntry, error) {
	defer iter.Stop()

	entries := make([]*model.AuditLogEntry, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate audit log entries")
		}

		var entry model.AuditLogEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode audit log entry", goerr.V("doc_id", doc.Ref.ID))
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (r *auditLogRepository) Query(ctx context.Context, filter interfaces.AuditFilter, page, pageSize int) ([]*model.AuditLogEntry, int, error) {
	query := r.buildQuery(filter)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count audit log entries")
	}
	total := len(allDocs)

	ordered := query.OrderBy("Timestamp", firestore.Desc)
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		ordered = ordered.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	entries, err := r.collect(ordered.Documents(ctx))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, orgID model.OrganizationID, entity types.EntityKind, entityID string) ([]*model.AuditLogEntry, error) {
	query := r.buildQuery(interfaces.AuditFilter{
		OrganizationID: orgID,
		Entity:         entity,
		EntityID:       entityID,
	})
	return r.collect(query.OrderBy("Timestamp", firestore.Desc).Documents(ctx))
}
