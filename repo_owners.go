package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookOwners interface {
	repository.Repository[*BookOwner]

	Register(ctx context.Context, owner *BookOwner) (*BookOwner, error)
	RegisterTx(ctx context.Context, tx bun.IDB, owner *BookOwner) (*BookOwner, error)
	GetByName(ctx context.Context, name string) (*BookOwner, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*BookOwner, error)
	ListByStatus(ctx context.Context, status ApprovalStatus) ([]*BookOwner, error)

	// UpdateStatusIf applies a status change only when the row still holds the
	// expected prior status, returning the number of rows moved (0 or 1).
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to ApprovalStatus) (int64, error)
	UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to ApprovalStatus) (int64, error)
}

type bookOwners struct {
	repository.Repository[*BookOwner]
	db *bun.DB
}

var _ BookOwners = (*bookOwners)(nil)

func NewBookOwnersRepository(db *bun.DB) BookOwners {
	repo := repository.NewRepository[*BookOwner](db, repository.ModelHandlers[*BookOwner]{
		NewRecord: func() *BookOwner { return &BookOwner{} },
		GetID: func(o *BookOwner) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *BookOwner, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
		GetIdentifier: func() string { return "name" },
	})

	return &bookOwners{Repository: repo, db: db}
}

func (r *bookOwners) Register(ctx context.Context, owner *BookOwner) (*BookOwner, error) {
	return r.RegisterTx(ctx, r.db, owner)
}

func (r *bookOwners) RegisterTx(ctx context.Context, tx bun.IDB, owner *BookOwner) (*BookOwner, error) {
	if owner != nil {
		owner.EnsureStatus()
		if owner.ID == uuid.Nil {
			owner.ID = uuid.New()
		}
	}
	return r.Repository.CreateTx(ctx, tx, owner)
}

func (r *bookOwners) GetByName(ctx context.Context, name string) (*BookOwner, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *bookOwners) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*BookOwner, error) {
	record := &BookOwner{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (r *bookOwners) ListByStatus(ctx context.Context, status ApprovalStatus) ([]*BookOwner, error) {
	var records []*BookOwner
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.approval_status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *bookOwners) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to ApprovalStatus) (int64, error) {
	return r.UpdateStatusIfTx(ctx, r.db, id, from, to)
}

func (r *bookOwners) UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to ApprovalStatus) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*BookOwner)(nil)).
		Set("approval_status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("approval_status = ?", from).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
