package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Admins() Admins
	Owners() BookOwners
	Readers() Readers
	RefreshTokens() RefreshTokens
	Posts() BookPosts
	Requests() BookRequests
}

type mngr struct {
	db            *bun.DB
	admins        Admins
	owners        BookOwners
	readers       Readers
	refreshTokens RefreshTokens
	posts         BookPosts
	requests      BookRequests
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		admins:        NewAdminsRepository(db),
		owners:        NewBookOwnersRepository(db),
		readers:       NewReadersRepository(db),
		refreshTokens: NewRefreshTokensRepository(db),
		posts:         NewBookPostsRepository(db),
		requests:      NewBookRequestsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	if m.owners == nil {
		return errors.New("repository owners should be initialized")
	}

	if m.readers == nil {
		return errors.New("repository readers should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.posts == nil {
		return errors.New("repository posts should be initialized")
	}

	if m.requests == nil {
		return errors.New("repository requests should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Admins() Admins {
	return m.admins
}

func (m mngr) Owners() BookOwners {
	return m.owners
}

func (m mngr) Readers() Readers {
	return m.readers
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m mngr) Posts() BookPosts {
	return m.posts
}

func (m mngr) Requests() BookRequests {
	return m.requests
}
