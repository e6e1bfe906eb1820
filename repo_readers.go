package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Readers interface {
	repository.Repository[*Reader]

	Register(ctx context.Context, reader *Reader) (*Reader, error)
	RegisterTx(ctx context.Context, tx bun.IDB, reader *Reader) (*Reader, error)
	GetByName(ctx context.Context, name string) (*Reader, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Reader, error)
}

type readers struct {
	repository.Repository[*Reader]
	db *bun.DB
}

var _ Readers = (*readers)(nil)

func NewReadersRepository(db *bun.DB) Readers {
	repo := repository.NewRepository[*Reader](db, repository.ModelHandlers[*Reader]{
		NewRecord: func() *Reader { return &Reader{} },
		GetID: func(r *Reader) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Reader, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string { return "name" },
	})

	return &readers{Repository: repo, db: db}
}

func (r *readers) Register(ctx context.Context, reader *Reader) (*Reader, error) {
	return r.RegisterTx(ctx, r.db, reader)
}

func (r *readers) RegisterTx(ctx context.Context, tx bun.IDB, reader *Reader) (*Reader, error) {
	if reader != nil && reader.ID == uuid.Nil {
		reader.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, reader)
}

func (r *readers) GetByName(ctx context.Context, name string) (*Reader, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *readers) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Reader, error) {
	record := &Reader{}
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
