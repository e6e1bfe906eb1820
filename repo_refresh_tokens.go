package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error)

	// DeleteByID removes the row and reports how many rows went away. During
	// rotation the count is the arbiter: two racers both read the row, only
	// the one whose delete affected a row may mint the replacement.
	DeleteByID(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (int64, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string { return "token" },
	})

	return &refreshTokens{Repository: repo, db: db}
}

func (r *refreshTokens) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *refreshTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Token value intentionally left out of the metadata.
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *refreshTokens) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.DeleteByIDTx(ctx, r.db, id)
}

func (r *refreshTokens) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokens) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return r.DeleteByTokenTx(ctx, r.db, token)
}

func (r *refreshTokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.DeleteExpiredTx(ctx, r.db, now)
}

func (r *refreshTokens) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
