package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Action is an admin decision on a pending record.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction normalizes a raw action string. Matching is case-insensitive;
// anything other than approve or reject fails with ErrInvalidAction.
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ActionApprove):
		return ActionApprove, nil
	case string(ActionReject):
		return ActionReject, nil
	default:
		return "", annotate(ErrInvalidAction, map[string]any{"action": raw})
	}
}

// ApprovalMachine drives the one-shot moderation transitions: a pending book
// owner becomes Approved or Rejected, a pending book post becomes Available
// or Rejected. Both transitions are terminal; a processed record can never
// return to Pending or flip to the other outcome.
type ApprovalMachine struct {
	repo   RepositoryManager
	logger Logger
	sink   ActivitySink
	now    func() time.Time
}

// NewApprovalMachine returns a new ApprovalMachine.
func NewApprovalMachine(repo RepositoryManager) *ApprovalMachine {
	return &ApprovalMachine{
		repo:   repo,
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
	}
}

func (m *ApprovalMachine) WithLogger(logger Logger) *ApprovalMachine {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for moderation events.
func (m *ApprovalMachine) WithActivitySink(sink ActivitySink) *ApprovalMachine {
	m.sink = normalizeActivitySink(sink)
	return m
}

// WithClock injects a custom time source (useful for tests).
func (m *ApprovalMachine) WithClock(clock func() time.Time) *ApprovalMachine {
	if clock != nil {
		m.now = clock
	}
	return m
}

// ProcessBookOwner applies an admin decision to a pending book owner. The
// status flip is a conditional update keyed on the Pending state, so two
// admins racing on the same account resolve to exactly one winner; the loser
// gets ErrAlreadyProcessed.
func (m *ApprovalMachine) ProcessBookOwner(ctx context.Context, claims AuthClaims, ownerID uuid.UUID, action Action) (*BookOwner, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return nil, err
	}

	target, err := ownerOutcome(action)
	if err != nil {
		return nil, err
	}

	owner, err := m.repo.Owners().GetByID(ctx, ownerID.String())
	if err != nil {
		return nil, m.missing(err, "book owner")
	}

	if owner.Status != ApprovalPending {
		return nil, annotate(ErrAlreadyProcessed, map[string]any{"status": owner.Status})
	}

	rows, err := m.repo.Owners().UpdateStatusIf(ctx, owner.ID, ApprovalPending, target)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to update owner status")
	}
	if rows == 0 {
		return nil, annotate(ErrAlreadyProcessed, map[string]any{"owner_id": owner.ID})
	}

	owner.Status = target

	m.emit(ctx, ActivityEvent{
		EventType:  ActivityEventOwnerProcessed,
		Actor:      actorFromClaims(claims),
		SubjectID:  owner.ID.String(),
		FromStatus: string(ApprovalPending),
		ToStatus:   string(target),
		Metadata:   map[string]any{"action": action},
	})

	return owner, nil
}

// ProcessBookPost applies an admin decision to a pending book post. Approval
// publishes the post as Available for borrowing; rejection is terminal. Same
// one-winner semantics as ProcessBookOwner.
func (m *ApprovalMachine) ProcessBookPost(ctx context.Context, claims AuthClaims, postID uuid.UUID, action Action) (*BookPost, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return nil, err
	}

	target, err := postOutcome(action)
	if err != nil {
		return nil, err
	}

	post, err := m.repo.Posts().GetByID(ctx, postID.String())
	if err != nil {
		return nil, m.missing(err, "book post")
	}

	if post.Status != PostPending {
		return nil, annotate(ErrAlreadyProcessed, map[string]any{"status": post.Status})
	}

	rows, err := m.repo.Posts().UpdateStatusIf(ctx, post.ID, PostPending, target)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to update post status")
	}
	if rows == 0 {
		return nil, annotate(ErrAlreadyProcessed, map[string]any{"post_id": post.ID})
	}

	post.Status = target

	m.emit(ctx, ActivityEvent{
		EventType:  ActivityEventPostProcessed,
		Actor:      actorFromClaims(claims),
		SubjectID:  post.ID.String(),
		FromStatus: string(PostPending),
		ToStatus:   string(target),
		Metadata:   map[string]any{"action": action},
	})

	return post, nil
}

// PendingOwners lists the accounts awaiting moderation.
func (m *ApprovalMachine) PendingOwners(ctx context.Context, claims AuthClaims) ([]*BookOwner, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return nil, err
	}
	return m.repo.Owners().ListByStatus(ctx, ApprovalPending)
}

// PendingPosts lists the posts awaiting moderation.
func (m *ApprovalMachine) PendingPosts(ctx context.Context, claims AuthClaims) ([]*BookPost, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return nil, err
	}
	return m.repo.Posts().ListByStatus(ctx, PostPending)
}

func ownerOutcome(action Action) (ApprovalStatus, error) {
	switch action {
	case ActionApprove:
		return ApprovalApproved, nil
	case ActionReject:
		return ApprovalRejected, nil
	default:
		return "", annotate(ErrInvalidAction, map[string]any{"action": action})
	}
}

func postOutcome(action Action) (PostStatus, error) {
	switch action {
	case ActionApprove:
		return PostAvailable, nil
	case ActionReject:
		return PostRejected, nil
	default:
		return "", annotate(ErrInvalidAction, map[string]any{"action": action})
	}
}

func requireRole(claims AuthClaims, role Role) error {
	if claims == nil || !claims.HasRole(string(role)) {
		return goerrors.New("caller lacks required role", goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden).
			WithTextCode("FORBIDDEN").
			WithMetadata(map[string]any{"required": role})
	}
	return nil
}

func (m *ApprovalMachine) missing(err error, what string) error {
	if repository.IsRecordNotFound(err) {
		return annotate(ErrNotFound, map[string]any{"entity": what})
	}
	return goerrors.Wrap(err, ErrPersistence.Category, "failed to load "+what)
}

func (m *ApprovalMachine) emit(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(m.sink)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
