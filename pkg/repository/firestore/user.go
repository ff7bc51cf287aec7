package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userRepository struct {
	*base
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	created := *user
	if created.ID == "" {
		created.ID = model.NewUserID()
	}
	created.Email = model.NormalizeEmail(created.Email)
	created.CreatedAt = now
	created.UpdatedAt = now

	col := r.collection(collectionUsers)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(col.Where("Email", "==", created.Email).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check email")
		}
		if len(docs) > 0 {
			return goerr.Wrap(ErrDuplicate, "email already registered", goerr.V("email", created.Email))
		}
		return tx.Create(col.Doc(string(created.ID)), &created)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, orgID model.OrganizationID, id model.UserID) (*model.User, error) {
	doc, err := r.collection(collectionUsers).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	var u model.User
	if err := doc.DataTo(&u); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("id", id))
	}
	if u.OrganizationID != orgID {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	docs, err := r.collection(collectionUsers).Where("Email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query user by email")
	}
	if len(docs) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("email", email))
	}

	var u model.User
	if err := docs[0].DataTo(&u); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("doc_id", docs[0].Ref.ID))
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context, orgID model.OrganizationID) ([]*model.User, error) {
	iter := r.collection(collectionUsers).
		Where("OrganizationID", "==", string(orgID)).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	users := make([]*model.User, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate users")
		}

		var u model.User
		if err := doc.DataTo(&u); err != nil {
			return nil, goerr.Wrap(err, "failed to decode user", goerr.V("doc_id", doc.Ref.ID))
		}
		users = append(users, &u)
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	ref := r.collection(collectionUsers).Doc(string(user.ID))
	updated := *user
	updated.Email = model.NormalizeEmail(updated.Email)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", user.ID))
			}
			return goerr.Wrap(err, "failed to get user", goerr.V("id", user.ID))
		}
		var existing model.User
		if err := doc.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to decode user", goerr.V("id", user.ID))
		}
		if existing.OrganizationID != user.OrganizationID {
			return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", user.ID))
		}

		if existing.Email != updated.Email {
			docs, err := tx.Documents(r.collection(collectionUsers).Where("Email", "==", updated.Email).Limit(1)).GetAll()
			if err != nil {
				return goerr.Wrap(err, "failed to check email")
			}
			if len(docs) > 0 {
				return goerr.Wrap(ErrDuplicate, "email already registered", goerr.V("email", updated.Email))
			}
		}

		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, &updated)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update user", goerr.V("id", user.ID))
	}

	return &updated, nil
}
