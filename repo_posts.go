package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookPosts interface {
	repository.Repository[*BookPost]

	Publish(ctx context.Context, post *BookPost) (*BookPost, error)
	PublishTx(ctx context.Context, tx bun.IDB, post *BookPost) (*BookPost, error)
	GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*BookPost, error)
	ListByStatus(ctx context.Context, status PostStatus) ([]*BookPost, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*BookPost, error)

	// UpdateStatusIf moves the post to a new status only when it still holds
	// the expected prior status; the returned count is the race arbiter for
	// concurrent moderation and borrow transitions.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to PostStatus) (int64, error)
	UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to PostStatus) (int64, error)
}

type bookPosts struct {
	repository.Repository[*BookPost]
	db *bun.DB
}

var _ BookPosts = (*bookPosts)(nil)

func NewBookPostsRepository(db *bun.DB) BookPosts {
	repo := repository.NewRepository[*BookPost](db, repository.ModelHandlers[*BookPost]{
		NewRecord: func() *BookPost { return &BookPost{} },
		GetID: func(p *BookPost) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *BookPost, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &bookPosts{Repository: repo, db: db}
}

// Publish inserts a new post in the moderation queue. Status always starts
// Pending regardless of what the caller set.
func (r *bookPosts) Publish(ctx context.Context, post *BookPost) (*BookPost, error) {
	return r.PublishTx(ctx, r.db, post)
}

func (r *bookPosts) PublishTx(ctx context.Context, tx bun.IDB, post *BookPost) (*BookPost, error) {
	if post != nil {
		post.Status = PostPending
		if post.ID == uuid.Nil {
			post.ID = uuid.New()
		}
	}
	return r.Repository.CreateTx(ctx, tx, post)
}

func (r *bookPosts) GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*BookPost, error) {
	record := &BookPost{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (r *bookPosts) ListByStatus(ctx context.Context, status PostStatus) ([]*BookPost, error) {
	var records []*BookPost
	err := r.db.NewSelect().
		Model(&records).
		Relation("Owner").
		Where("?TableAlias.post_status = ?", status).
		Order("bpo.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *bookPosts) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*BookPost, error) {
	var records []*BookPost
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *bookPosts) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to PostStatus) (int64, error) {
	return r.UpdateStatusIfTx(ctx, r.db, id, from, to)
}

func (r *bookPosts) UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to PostStatus) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*BookPost)(nil)).
		Set("post_status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("post_status = ?", from).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
