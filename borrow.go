package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PostInput is a book owner's listing submission. New posts always enter the
// Pending state and stay invisible to readers until an admin approves them.
type PostInput struct {
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	ISBN        string    `json:"isbn"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Price       float64   `json:"price"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

func (p PostInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Genre, validation.Required),
		validation.Field(&p.Language, validation.Required),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.StartDate, validation.Required),
		validation.Field(&p.EndDate, validation.Required),
	)
}

// BorrowService runs the lending lifecycle: readers open borrow requests
// against available posts, owners accept or reject them, readers return
// accepted books. Every transition that touches both a request and its post
// runs in one transaction with conditional updates, so a book can never be
// lent to two readers at once.
type BorrowService struct {
	repo   RepositoryManager
	logger Logger
	sink   ActivitySink
	now    func() time.Time
}

// NewBorrowService returns a new BorrowService.
func NewBorrowService(repo RepositoryManager) *BorrowService {
	return &BorrowService{
		repo:   repo,
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
	}
}

func (s *BorrowService) WithLogger(logger Logger) *BorrowService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for lifecycle events.
func (s *BorrowService) WithActivitySink(sink ActivitySink) *BorrowService {
	s.sink = normalizeActivitySink(sink)
	return s
}

// WithClock injects a custom time source (useful for tests).
func (s *BorrowService) WithClock(clock func() time.Time) *BorrowService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// PublishPost creates a listing for the calling book owner. The owner
// identity comes from the token claims, never from the payload.
func (s *BorrowService) PublishPost(ctx context.Context, claims AuthClaims, input PostInput) (*BookPost, error) {
	ownerID, err := principalUUID(claims, RoleBookOwner)
	if err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid book post")
	}

	if input.EndDate.Before(input.StartDate) {
		return nil, goerrors.New("end date precedes start date", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode("INVALID_WINDOW")
	}

	post := &BookPost{
		OwnerID:     ownerID,
		Title:       input.Title,
		Genre:       input.Genre,
		ISBN:        input.ISBN,
		Description: input.Description,
		Language:    input.Language,
		Price:       input.Price,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}

	post, err = s.repo.Posts().Publish(ctx, post)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to publish book post")
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventPostProcessed,
		Actor:     actorFromClaims(claims),
		SubjectID: post.ID.String(),
		ToStatus:  string(post.Status),
		Metadata:  map[string]any{"title": post.Title},
	})

	return post, nil
}

// Borrow opens a Pending borrow request for the calling reader against an
// available post. The post itself stays Available; it only flips to Borrowed
// when the owner accepts a request. A post outside its lending window or in
// any other state fails with ErrNotAvailable.
func (s *BorrowService) Borrow(ctx context.Context, claims AuthClaims, postID uuid.UUID) (*BookRequest, error) {
	readerID, err := principalUUID(claims, RoleReader)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.Posts().GetByID(ctx, postID.String())
	if err != nil {
		return nil, s.missing(err, "book post")
	}

	if !post.Offerable(s.now()) {
		return nil, annotate(ErrNotAvailable, map[string]any{"status": post.Status})
	}

	request, err := s.repo.Requests().Open(ctx, &BookRequest{
		PostID:   post.ID,
		ReaderID: readerID,
		Status:   RequestPending,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to open borrow request")
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventRequestOpened,
		Actor:     actorFromClaims(claims),
		SubjectID: request.ID.String(),
		ToStatus:  string(RequestPending),
		Metadata:  map[string]any{"post_id": post.ID},
	})

	return request, nil
}

// Respond applies the owning book owner's decision to a pending request. The
// responder identity is taken from the token claims and checked against the
// post's owner; a mismatch fails with ErrMismatch before any state changes.
//
// Accepting flips the request to Accepted and the post to Borrowed in one
// transaction. The post flip is conditional on Available, so when two pending
// requests race, only the first acceptance lands and the other owner call
// fails with ErrNotAvailable. Rejecting leaves the post untouched.
func (s *BorrowService) Respond(ctx context.Context, claims AuthClaims, requestID uuid.UUID, action Action) (*BookRequest, error) {
	ownerID, err := principalUUID(claims, RoleBookOwner)
	if err != nil {
		return nil, err
	}

	if action != ActionApprove && action != ActionReject {
		return nil, annotate(ErrInvalidAction, map[string]any{"action": action})
	}

	var request *BookRequest

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		request, err = s.repo.Requests().GetWithPostTx(ctx, tx, requestID)
		if err != nil {
			return s.missing(err, "borrow request")
		}

		if request.Post == nil || request.Post.OwnerID != ownerID {
			return annotate(ErrMismatch, map[string]any{"request_id": requestID})
		}

		if request.Status != RequestPending {
			return annotate(ErrAlreadyProcessed, map[string]any{"status": request.Status})
		}

		target := RequestRejected
		if action == ActionApprove {
			target = RequestAccepted
		}

		rows, err := s.repo.Requests().UpdateStatusIfTx(ctx, tx, request.ID, RequestPending, target)
		if err != nil {
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to update borrow request")
		}
		if rows == 0 {
			return annotate(ErrAlreadyProcessed, map[string]any{"request_id": request.ID})
		}

		if target == RequestAccepted {
			rows, err = s.repo.Posts().UpdateStatusIfTx(ctx, tx, request.PostID, PostAvailable, PostBorrowed)
			if err != nil {
				return goerrors.Wrap(err, ErrPersistence.Category, "failed to mark post borrowed")
			}
			if rows == 0 {
				// Another acceptance already claimed the book; roll
				// everything back.
				return annotate(ErrNotAvailable, map[string]any{"post_id": request.PostID})
			}
		}

		request.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType:  ActivityEventRequestResponded,
		Actor:      actorFromClaims(claims),
		SubjectID:  request.ID.String(),
		FromStatus: string(RequestPending),
		ToStatus:   string(request.Status),
		Metadata:   map[string]any{"post_id": request.PostID},
	})

	return request, nil
}

// Return closes out an accepted loan for the calling reader: the request goes
// Accepted to Returned and the post goes Borrowed back to Available, in one
// transaction. Only the reader who borrowed the book may return it.
func (s *BorrowService) Return(ctx context.Context, claims AuthClaims, requestID uuid.UUID) (*BookRequest, error) {
	readerID, err := principalUUID(claims, RoleReader)
	if err != nil {
		return nil, err
	}

	var request *BookRequest

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		request, err = s.repo.Requests().GetWithPostTx(ctx, tx, requestID)
		if err != nil {
			return s.missing(err, "borrow request")
		}

		if request.ReaderID != readerID {
			return annotate(ErrMismatch, map[string]any{"request_id": requestID})
		}

		if request.Status != RequestAccepted {
			return annotate(ErrInvalidAction, map[string]any{"status": request.Status})
		}

		rows, err := s.repo.Requests().UpdateStatusIfTx(ctx, tx, request.ID, RequestAccepted, RequestReturned)
		if err != nil {
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to close borrow request")
		}
		if rows == 0 {
			return annotate(ErrAlreadyProcessed, map[string]any{"request_id": request.ID})
		}

		rows, err = s.repo.Posts().UpdateStatusIfTx(ctx, tx, request.PostID, PostBorrowed, PostAvailable)
		if err != nil {
			return goerrors.Wrap(err, ErrPersistence.Category, "failed to release post")
		}
		if rows == 0 {
			return annotate(ErrPersistence, map[string]any{"post_id": request.PostID})
		}

		request.Status = RequestReturned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType:  ActivityEventRequestReturned,
		Actor:      actorFromClaims(claims),
		SubjectID:  request.ID.String(),
		FromStatus: string(RequestAccepted),
		ToStatus:   string(RequestReturned),
		Metadata:   map[string]any{"post_id": request.PostID},
	})

	return request, nil
}

// RequestsForOwner lists every request against the calling owner's posts.
func (s *BorrowService) RequestsForOwner(ctx context.Context, claims AuthClaims) ([]*BookRequest, error) {
	ownerID, err := principalUUID(claims, RoleBookOwner)
	if err != nil {
		return nil, err
	}
	return s.repo.Requests().ListForOwner(ctx, ownerID)
}

// RequestsForReader lists the calling reader's own requests.
func (s *BorrowService) RequestsForReader(ctx context.Context, claims AuthClaims) ([]*BookRequest, error) {
	readerID, err := principalUUID(claims, RoleReader)
	if err != nil {
		return nil, err
	}
	return s.repo.Requests().ListForReader(ctx, readerID)
}

// AvailablePosts lists the posts readers can currently request.
func (s *BorrowService) AvailablePosts(ctx context.Context) ([]*BookPost, error) {
	return s.repo.Posts().ListByStatus(ctx, PostAvailable)
}

// principalUUID extracts and parses the role-scoped principal id from the
// claims, enforcing the role along the way.
func principalUUID(claims AuthClaims, role Role) (uuid.UUID, error) {
	if err := requireRole(claims, role); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.PrincipalID())
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryAuth, "token carries no usable principal id").
			WithTextCode("BAD_PRINCIPAL")
	}
	return id, nil
}

func (s *BorrowService) missing(err error, what string) error {
	if repository.IsRecordNotFound(err) {
		return annotate(ErrNotFound, map[string]any{"entity": what})
	}
	return goerrors.Wrap(err, ErrPersistence.Category, "failed to load "+what)
}

func (s *BorrowService) emit(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(s.sink)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
