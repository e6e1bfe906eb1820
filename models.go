package identity

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokenTTL is the absolute lifetime of a refresh token.
const RefreshTokenTTL = 7 * 24 * time.Hour

// ApprovalStatus gates book-owner accounts and is reused for the generic
// pending/approved/rejected shape.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// PostStatus is the moderation/borrowing state of a book post.
type PostStatus string

const (
	PostPending   PostStatus = "Pending"
	PostAvailable PostStatus = "Available"
	PostBorrowed  PostStatus = "Borrowed"
	PostRejected  PostStatus = "Rejected"
)

// RequestStatus is the lifecycle state of a borrow request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestAccepted RequestStatus = "Accepted"
	RequestRejected RequestStatus = "Rejected"
	RequestReturned RequestStatus = "Returned"
)

// Admin is a moderator account, identified by name.
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BookOwner is a lender account. PII fields hold ciphertext only; plaintext
// exists in memory during an authorized read, never at rest.
type BookOwner struct {
	bun.BaseModel  `bun:"table:book_owners,alias:bow"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string         `bun:"name,notnull,unique" json:"name,omitempty"`
	PasswordHash   string         `bun:"password_hash,notnull" json:"-"`
	EncryptedSSN   string         `bun:"encrypted_ssn,notnull" json:"-"`
	EncryptedEmail string         `bun:"encrypted_email,notnull" json:"-"`
	EncryptedPhone string         `bun:"encrypted_phone,notnull" json:"-"`
	Status         ApprovalStatus `bun:"approval_status,notnull" json:"approval_status,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults a zero status to Pending, the signup state.
func (o *BookOwner) EnsureStatus() {
	if o.Status == "" {
		o.Status = ApprovalPending
	}
}

// IsApproved reports whether the owner may hold a session.
func (o *BookOwner) IsApproved() bool {
	return o.Status == ApprovalApproved
}

// OwnerPII is the decrypted view of a book owner's personal fields, produced
// only by an authorized read path.
type OwnerPII struct {
	SSN   string `json:"ssn,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Reader is a borrower account. Contact fields are encrypted at rest like the
// owner's.
type Reader struct {
	bun.BaseModel  `bun:"table:readers,alias:rdr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string     `bun:"name,notnull,unique" json:"name,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	EncryptedEmail string     `bun:"encrypted_email,notnull" json:"-"`
	EncryptedPhone string     `bun:"encrypted_phone,notnull" json:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PrincipalRef is a discriminated reference to exactly one principal row.
// RefreshToken rows carry one; the Kind tag decides which id is set.
type PrincipalRef struct {
	Kind        Role
	Name        string
	AdminID     *uuid.UUID
	BookOwnerID *uuid.UUID
	ReaderID    *uuid.UUID
}

// AdminRef builds a PrincipalRef for an admin.
func AdminRef(id uuid.UUID, name string) PrincipalRef {
	return PrincipalRef{Kind: RoleAdmin, Name: name, AdminID: &id}
}

// OwnerRef builds a PrincipalRef for a book owner.
func OwnerRef(id uuid.UUID, name string) PrincipalRef {
	return PrincipalRef{Kind: RoleBookOwner, Name: name, BookOwnerID: &id}
}

// ReaderRef builds a PrincipalRef for a reader.
func ReaderRef(id uuid.UUID, name string) PrincipalRef {
	return PrincipalRef{Kind: RoleReader, Name: name, ReaderID: &id}
}

// Validate enforces the exactly-one-reference invariant: the id matching Kind
// is set and the other two are nil.
func (p PrincipalRef) Validate() error {
	set := 0
	for _, id := range []*uuid.UUID{p.AdminID, p.BookOwnerID, p.ReaderID} {
		if id != nil {
			set++
		}
	}
	if set != 1 {
		return goerrors.New("principal ref must set exactly one id", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"set": set, "kind": p.Kind})
	}

	var matches bool
	switch p.Kind {
	case RoleAdmin:
		matches = p.AdminID != nil
	case RoleBookOwner:
		matches = p.BookOwnerID != nil
	case RoleReader:
		matches = p.ReaderID != nil
	}
	if !matches {
		return goerrors.New("principal ref id does not match kind", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"kind": p.Kind})
	}

	return nil
}

// ID returns the referenced principal id.
func (p PrincipalRef) ID() uuid.UUID {
	switch p.Kind {
	case RoleAdmin:
		if p.AdminID != nil {
			return *p.AdminID
		}
	case RoleBookOwner:
		if p.BookOwnerID != nil {
			return *p.BookOwnerID
		}
	case RoleReader:
		if p.ReaderID != nil {
			return *p.ReaderID
		}
	}
	return uuid.Nil
}

// RefreshToken is one opaque session secret, scoped to exactly one principal.
// Valid iff not expired and still present; rotation deletes the row.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UserType      Role       `bun:"user_type,notnull" json:"user_type,omitempty"`
	PrincipalName string     `bun:"principal_name,notnull" json:"principal_name,omitempty"`
	AdminID       *uuid.UUID `bun:"admin_id,nullzero,type:uuid" json:"admin_id,omitempty"`
	BookOwnerID   *uuid.UUID `bun:"book_owner_id,nullzero,type:uuid" json:"book_owner_id,omitempty"`
	ReaderID      *uuid.UUID `bun:"reader_id,nullzero,type:uuid" json:"reader_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the token is past its absolute expiry.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Principal rebuilds the discriminated reference from the row.
func (t *RefreshToken) Principal() (PrincipalRef, error) {
	ref := PrincipalRef{
		Kind:        t.UserType,
		Name:        t.PrincipalName,
		AdminID:     t.AdminID,
		BookOwnerID: t.BookOwnerID,
		ReaderID:    t.ReaderID,
	}
	if err := ref.Validate(); err != nil {
		return PrincipalRef{}, err
	}
	return ref, nil
}

// NewRefreshToken builds an unsaved token row for a principal.
func NewRefreshToken(ref PrincipalRef, token string, now time.Time, ttl time.Duration) (*RefreshToken, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = RefreshTokenTTL
	}

	created := now
	return &RefreshToken{
		ID:            uuid.New(),
		Token:         token,
		ExpiresAt:     now.Add(ttl),
		UserType:      ref.Kind,
		PrincipalName: ref.Name,
		AdminID:       ref.AdminID,
		BookOwnerID:   ref.BookOwnerID,
		ReaderID:      ref.ReaderID,
		CreatedAt:     &created,
	}, nil
}

// BookPost is a lending offer. It becomes visible once moderation approves it
// (PostAvailable) and is only offerable inside its borrowing window.
type BookPost struct {
	bun.BaseModel `bun:"table:book_posts,alias:bpo"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Owner         *BookOwner `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	Genre         string     `bun:"genre" json:"genre,omitempty"`
	ISBN          string     `bun:"isbn" json:"isbn,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	Language      string     `bun:"language" json:"language,omitempty"`
	Price         float64    `bun:"price" json:"price,omitempty"`
	StartDate     time.Time  `bun:"start_date,notnull" json:"start_date,omitempty"`
	EndDate       time.Time  `bun:"end_date,notnull" json:"end_date,omitempty"`
	Status        PostStatus `bun:"post_status,notnull" json:"post_status,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults a zero status to Pending, the moderation queue.
func (p *BookPost) EnsureStatus() {
	if p.Status == "" {
		p.Status = PostPending
	}
}

// Offerable reports whether the post can accept a borrow request right now:
// approved, not borrowed, and inside [StartDate, EndDate].
func (p *BookPost) Offerable(now time.Time) bool {
	if p.Status != PostAvailable {
		return false
	}
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// BookRequest links a reader to a post. At most one Accepted request exists
// per post at a time; acceptance and the post's Borrowed status move together.
type BookRequest struct {
	bun.BaseModel `bun:"table:book_requests,alias:brq"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PostID        uuid.UUID     `bun:"post_id,notnull,type:uuid" json:"post_id,omitempty"`
	Post          *BookPost     `bun:"rel:belongs-to,join:post_id=id" json:"post,omitempty"`
	ReaderID      uuid.UUID     `bun:"reader_id,notnull,type:uuid" json:"reader_id,omitempty"`
	Reader        *Reader       `bun:"rel:belongs-to,join:reader_id=id" json:"reader,omitempty"`
	Status        RequestStatus `bun:"request_status,notnull" json:"request_status,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults a zero status to Pending.
func (r *BookRequest) EnsureStatus() {
	if r.Status == "" {
		r.Status = RequestPending
	}
}
