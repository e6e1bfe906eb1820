package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookRequests interface {
	repository.Repository[*BookRequest]

	Open(ctx context.Context, request *BookRequest) (*BookRequest, error)
	OpenTx(ctx context.Context, tx bun.IDB, request *BookRequest) (*BookRequest, error)
	GetWithPost(ctx context.Context, id uuid.UUID) (*BookRequest, error)
	GetWithPostTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*BookRequest, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*BookRequest, error)
	ListForReader(ctx context.Context, readerID uuid.UUID) ([]*BookRequest, error)

	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to RequestStatus) (int64, error)
	UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to RequestStatus) (int64, error)
}

type bookRequests struct {
	repository.Repository[*BookRequest]
	db *bun.DB
}

var _ BookRequests = (*bookRequests)(nil)

func NewBookRequestsRepository(db *bun.DB) BookRequests {
	repo := repository.NewRepository[*BookRequest](db, repository.ModelHandlers[*BookRequest]{
		NewRecord: func() *BookRequest { return &BookRequest{} },
		GetID: func(r *BookRequest) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *BookRequest, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &bookRequests{Repository: repo, db: db}
}

func (r *bookRequests) Open(ctx context.Context, request *BookRequest) (*BookRequest, error) {
	return r.OpenTx(ctx, r.db, request)
}

func (r *bookRequests) OpenTx(ctx context.Context, tx bun.IDB, request *BookRequest) (*BookRequest, error) {
	if request != nil {
		request.EnsureStatus()
		if request.ID == uuid.Nil {
			request.ID = uuid.New()
		}
	}
	return r.Repository.CreateTx(ctx, tx, request)
}

func (r *bookRequests) GetWithPost(ctx context.Context, id uuid.UUID) (*BookRequest, error) {
	return r.GetWithPostTx(ctx, r.db, id)
}

func (r *bookRequests) GetWithPostTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*BookRequest, error) {
	record := &BookRequest{}
	err := tx.NewSelect().
		Model(record).
		Relation("Post").
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

func (r *bookRequests) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*BookRequest, error) {
	var records []*BookRequest
	err := r.db.NewSelect().
		Model(&records).
		Relation("Post").
		Relation("Reader").
		Where("post.owner_id = ?", ownerID).
		Order("brq.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *bookRequests) ListForReader(ctx context.Context, readerID uuid.UUID) ([]*BookRequest, error) {
	var records []*BookRequest
	err := r.db.NewSelect().
		Model(&records).
		Relation("Post").
		Where("?TableAlias.reader_id = ?", readerID).
		Order("brq.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *bookRequests) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to RequestStatus) (int64, error) {
	return r.UpdateStatusIfTx(ctx, r.db, id, from, to)
}

func (r *bookRequests) UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to RequestStatus) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*BookRequest)(nil)).
		Set("request_status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("request_status = ?", from).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
