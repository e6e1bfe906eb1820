package identity

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Rotator exchanges a valid refresh token for a fresh session. Rotation is
// single use: the presented token is deleted and replaced in one transaction,
// so of N concurrent presentations of the same token exactly one wins.
type Rotator struct {
	repo       RepositoryManager
	tokens     TokenService
	logger     Logger
	sink       ActivitySink
	refreshTTL time.Duration
	now        func() time.Time
}

// NewRotator returns a new Rotator.
func NewRotator(repo RepositoryManager, tokens TokenService) *Rotator {
	return &Rotator{
		repo:       repo,
		tokens:     tokens,
		logger:     defLogger{},
		sink:       noopActivitySink{},
		refreshTTL: RefreshTokenTTL,
		now:        time.Now,
	}
}

func (r *Rotator) WithLogger(logger Logger) *Rotator {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithActivitySink configures an ActivitySink for rotation events.
func (r *Rotator) WithActivitySink(sink ActivitySink) *Rotator {
	r.sink = normalizeActivitySink(sink)
	return r
}

// WithRefreshTokenTTL overrides the replacement token's lifetime.
func (r *Rotator) WithRefreshTokenTTL(ttl time.Duration) *Rotator {
	if ttl > 0 {
		r.refreshTTL = ttl
	}
	return r
}

// WithClock injects a custom time source (useful for tests).
func (r *Rotator) WithClock(clock func() time.Time) *Rotator {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Rotate validates the presented refresh token, retires it, and issues a new
// access token plus replacement refresh token. It fails with ErrNotFound for
// unknown or already-rotated tokens, ErrExpired for stale ones, and
// ErrNotApproved when a book owner lost approval since the token was issued.
func (r *Rotator) Rotate(ctx context.Context, presentedToken string) (*Session, error) {
	if presentedToken == "" {
		return nil, ErrNotFound
	}

	var session *Session
	var principal PrincipalRef
	var expiredID uuid.UUID

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		stored, err := r.repo.RefreshTokens().GetByTokenTx(ctx, tx, presentedToken)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrNotFound
			}
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to load refresh token")
		}

		now := r.now()
		if stored.IsExpired(now) {
			expiredID = stored.ID
			return ErrExpired
		}

		// The delete count arbitrates concurrent rotations of the same
		// token: the loser finds zero rows and reports not found.
		rows, err := r.repo.RefreshTokens().DeleteByIDTx(ctx, tx, stored.ID)
		if err != nil {
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to retire refresh token")
		}
		if rows == 0 {
			return ErrNotFound
		}

		ref, err := r.checkPrincipalTx(ctx, tx, stored)
		if err != nil {
			return err
		}
		principal = ref

		idClaim := ""
		if ref.Kind != RoleAdmin {
			idClaim = ref.ID().String()
		}

		access, err := r.tokens.Generate(ref.Name, ref.Kind, idClaim)
		if err != nil {
			return err
		}

		opaque, err := GenerateRefreshToken()
		if err != nil {
			return err
		}

		next, err := NewRefreshToken(ref, opaque, now, r.refreshTTL)
		if err != nil {
			return err
		}

		if _, err := r.repo.RefreshTokens().CreateTx(ctx, tx, next); err != nil {
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to save replacement refresh token")
		}

		session = &Session{
			AccessToken:      access,
			RefreshToken:     opaque,
			RefreshExpiresAt: next.ExpiresAt,
			Cookie:           NewRefreshCookie(opaque, next.ExpiresAt),
		}
		return nil
	})
	if err != nil {
		// Returning ErrExpired rolls the transaction back, so the reap
		// happens out here where the delete can commit.
		if errors.Is(err, ErrExpired) && expiredID != uuid.Nil {
			if _, delErr := r.repo.RefreshTokens().DeleteByID(ctx, expiredID); delErr != nil {
				r.logger.Warn("failed to reap expired refresh token: %v", delErr)
			}
		}
		return nil, err
	}

	sink := normalizeActivitySink(r.sink)
	if err := sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventRefreshRotated,
		Actor:      ActorRef{ID: principal.ID().String(), Type: string(principal.Kind)},
		SubjectID:  principal.ID().String(),
		Metadata:   map[string]any{},
		OccurredAt: r.now(),
	}); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}

	return session, nil
}

// Revoke deletes the presented refresh token without issuing a replacement.
func (r *Rotator) Revoke(ctx context.Context, presentedToken string) error {
	if presentedToken == "" {
		return ErrNotFound
	}

	rows, err := r.repo.RefreshTokens().DeleteByToken(ctx, presentedToken)
	if err != nil {
		return goerrors.Wrap(err, ErrPersistence.Category, "failed to revoke refresh token")
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeExpired reaps every refresh token past its expiry. Intended for a
// periodic maintenance job.
func (r *Rotator) RevokeExpired(ctx context.Context) (int64, error) {
	var rows int64
	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		rows, err = r.repo.RefreshTokens().DeleteExpiredTx(ctx, tx, r.now())
		return err
	})
	if err != nil {
		return 0, goerrors.Wrap(err, ErrPersistence.Category, "failed to reap expired refresh tokens")
	}
	return rows, nil
}

// checkPrincipalTx re-reads the token's principal and re-applies the policy
// gates that guarded login. Book owners must still be approved; admins and
// readers only need to still exist.
func (r *Rotator) checkPrincipalTx(ctx context.Context, tx bun.IDB, stored *RefreshToken) (PrincipalRef, error) {
	ref, err := stored.Principal()
	if err != nil {
		return PrincipalRef{}, err
	}

	switch ref.Kind {
	case RoleAdmin:
		if _, err := r.repo.Admins().GetByNameTx(ctx, tx, ref.Name); err != nil {
			return PrincipalRef{}, r.missingPrincipal(err)
		}
	case RoleBookOwner:
		owner, err := r.repo.Owners().GetByNameTx(ctx, tx, ref.Name)
		if err != nil {
			return PrincipalRef{}, r.missingPrincipal(err)
		}
		if !owner.IsApproved() {
			return PrincipalRef{}, annotate(ErrNotApproved, map[string]any{"status": owner.Status})
		}
	case RoleReader:
		if _, err := r.repo.Readers().GetByNameTx(ctx, tx, ref.Name); err != nil {
			return PrincipalRef{}, r.missingPrincipal(err)
		}
	default:
		return PrincipalRef{}, ErrInvalidCredentials
	}

	return ref, nil
}

func (r *Rotator) missingPrincipal(err error) error {
	if repository.IsRecordNotFound(err) {
		return ErrNotFound
	}
	return goerrors.Wrap(err, ErrPersistence.Category, "failed to load token principal")
}
