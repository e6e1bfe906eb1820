package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Credentials is a name/password login payload.
type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate implements basic payload validation.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// OwnerSignup carries a book-owner registration. SSN, email, and phone are
// plaintext here and ciphertext everywhere downstream.
type OwnerSignup struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	SSN      string `json:"ssn"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (s OwnerSignup) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Password, validation.Required, validation.Length(8, 0)),
		validation.Field(&s.SSN, validation.Required),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Phone, validation.Required),
	)
}

// ReaderSignup carries a reader registration.
type ReaderSignup struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (s ReaderSignup) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Password, validation.Required, validation.Length(8, 0)),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Phone, validation.Required),
	)
}

// Session is the result of a successful login or rotation: a signed access
// token plus the opaque refresh token and its cookie form.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	Cookie           *http.Cookie
}

// Authenticator verifies credentials, enforces the owner-approval gate, and
// opens sessions (access token + persisted refresh token).
type Authenticator struct {
	repo       RepositoryManager
	tokens     TokenService
	cipher     *PIICipher
	logger     Logger
	sink       ActivitySink
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthenticator returns a new Authenticator.
func NewAuthenticator(repo RepositoryManager, tokens TokenService, cipher *PIICipher) *Authenticator {
	return &Authenticator{
		repo:       repo,
		tokens:     tokens,
		cipher:     cipher,
		logger:     defLogger{},
		sink:       noopActivitySink{},
		refreshTTL: RefreshTokenTTL,
		now:        time.Now,
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.sink = normalizeActivitySink(sink)
	return a
}

// WithRefreshTokenTTL overrides the refresh-token lifetime.
func (a *Authenticator) WithRefreshTokenTTL(ttl time.Duration) *Authenticator {
	if ttl > 0 {
		a.refreshTTL = ttl
	}
	return a
}

// WithClock injects a custom time source (useful for tests).
func (a *Authenticator) WithClock(clock func() time.Time) *Authenticator {
	if clock != nil {
		a.now = clock
	}
	return a
}

// SignUpOwner registers a book owner in the Pending state with PII encrypted
// at rest. The account cannot log in until an admin approves it.
func (a *Authenticator) SignUpOwner(ctx context.Context, input OwnerSignup) (*BookOwner, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid owner signup")
	}

	if err := a.ensureNameFree(ctx, RoleBookOwner, input.Name); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	owner := &BookOwner{
		Name:         input.Name,
		PasswordHash: hash,
		Status:       ApprovalPending,
	}

	if owner.EncryptedSSN, err = a.cipher.Encrypt(input.SSN); err != nil {
		return nil, err
	}
	if owner.EncryptedEmail, err = a.cipher.Encrypt(input.Email); err != nil {
		return nil, err
	}
	if owner.EncryptedPhone, err = a.cipher.Encrypt(input.Phone); err != nil {
		return nil, err
	}

	owner, err = a.repo.Owners().Register(ctx, owner)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to register book owner")
	}

	a.emit(ctx, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorRef{ID: owner.ID.String(), Type: string(RoleBookOwner)},
		SubjectID: owner.ID.String(),
		ToStatus:  string(owner.Status),
	})

	return owner, nil
}

// SignUpReader registers a reader account; readers need no approval.
func (a *Authenticator) SignUpReader(ctx context.Context, input ReaderSignup) (*Reader, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reader signup")
	}

	if err := a.ensureNameFree(ctx, RoleReader, input.Name); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		Name:         input.Name,
		PasswordHash: hash,
	}

	if reader.EncryptedEmail, err = a.cipher.Encrypt(input.Email); err != nil {
		return nil, err
	}
	if reader.EncryptedPhone, err = a.cipher.Encrypt(input.Phone); err != nil {
		return nil, err
	}

	reader, err = a.repo.Readers().Register(ctx, reader)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to register reader")
	}

	a.emit(ctx, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorRef{ID: reader.ID.String(), Type: string(RoleReader)},
		SubjectID: reader.ID.String(),
	})

	return reader, nil
}

// RegisterAdmin creates an admin account. Intended for seed/provisioning
// paths, not an open endpoint.
func (a *Authenticator) RegisterAdmin(ctx context.Context, name, password string) (*Admin, error) {
	if err := (Credentials{Name: name, Password: password}).Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid admin registration")
	}

	if err := a.ensureNameFree(ctx, RoleAdmin, name); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin, err := a.repo.Admins().Register(ctx, &Admin{Name: name, PasswordHash: hash})
	if err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to register admin")
	}

	return admin, nil
}

// LoginAdmin authenticates an admin by name and password.
func (a *Authenticator) LoginAdmin(ctx context.Context, creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}

	admin, err := a.repo.Admins().GetByName(ctx, creds.Name)
	if err != nil {
		return nil, a.loginFailure(ctx, RoleAdmin, creds.Name, err)
	}

	if err := ComparePasswordAndHash(creds.Password, admin.PasswordHash); err != nil {
		return nil, a.loginFailure(ctx, RoleAdmin, creds.Name, err)
	}

	return a.openSession(ctx, AdminRef(admin.ID, admin.Name))
}

// LoginOwner authenticates a book owner. An account that exists but has not
// been approved fails with ErrNotApproved, never ErrInvalidCredentials, so
// clients can distinguish "awaiting approval" from "wrong password".
func (a *Authenticator) LoginOwner(ctx context.Context, creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}

	owner, err := a.repo.Owners().GetByName(ctx, creds.Name)
	if err != nil {
		return nil, a.loginFailure(ctx, RoleBookOwner, creds.Name, err)
	}

	if err := ComparePasswordAndHash(creds.Password, owner.PasswordHash); err != nil {
		return nil, a.loginFailure(ctx, RoleBookOwner, creds.Name, err)
	}

	// The credential check runs first: an unapproved account with a wrong
	// password reports bad credentials, not its approval state.
	if !owner.IsApproved() {
		a.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{ID: owner.ID.String(), Type: string(RoleBookOwner)},
			SubjectID: owner.ID.String(),
			Metadata:  map[string]any{"status": owner.Status},
		})
		return nil, annotate(ErrNotApproved, map[string]any{"status": owner.Status})
	}

	return a.openSession(ctx, OwnerRef(owner.ID, owner.Name))
}

// LoginReader authenticates a reader by name and password.
func (a *Authenticator) LoginReader(ctx context.Context, creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}

	reader, err := a.repo.Readers().GetByName(ctx, creds.Name)
	if err != nil {
		return nil, a.loginFailure(ctx, RoleReader, creds.Name, err)
	}

	if err := ComparePasswordAndHash(creds.Password, reader.PasswordHash); err != nil {
		return nil, a.loginFailure(ctx, RoleReader, creds.Name, err)
	}

	return a.openSession(ctx, ReaderRef(reader.ID, reader.Name))
}

// OwnerPII decrypts a book owner's stored personal fields for an admin
// reviewing a signup. Any other caller fails the role check.
func (a *Authenticator) OwnerPII(ctx context.Context, claims AuthClaims, ownerID uuid.UUID) (OwnerPII, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return OwnerPII{}, err
	}

	owner, err := a.repo.Owners().GetByID(ctx, ownerID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return OwnerPII{}, annotate(ErrNotFound, map[string]any{"entity": "book owner"})
		}
		return OwnerPII{}, goerrors.Wrap(err, ErrPersistence.Category, "failed to load book owner")
	}

	return a.cipher.DecryptOwnerPII(owner)
}

// ReaderContact decrypts a reader's stored contact fields for an admin.
func (a *Authenticator) ReaderContact(ctx context.Context, claims AuthClaims, readerID uuid.UUID) (OwnerPII, error) {
	if err := requireRole(claims, RoleAdmin); err != nil {
		return OwnerPII{}, err
	}

	reader, err := a.repo.Readers().GetByID(ctx, readerID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return OwnerPII{}, annotate(ErrNotFound, map[string]any{"entity": "reader"})
		}
		return OwnerPII{}, goerrors.Wrap(err, ErrPersistence.Category, "failed to load reader")
	}

	return a.cipher.DecryptReaderContact(reader)
}

// Logout revokes the presented refresh token. The access token stays valid
// until expiry; only the refresh lifeline is cut.
func (a *Authenticator) Logout(ctx context.Context, presentedToken string) error {
	if presentedToken == "" {
		return ErrNotFound
	}

	rows, err := a.repo.RefreshTokens().DeleteByToken(ctx, presentedToken)
	if err != nil {
		return goerrors.Wrap(err, ErrPersistence.Category, "failed to revoke refresh token")
	}
	if rows == 0 {
		return ErrNotFound
	}

	a.emit(ctx, ActivityEvent{EventType: ActivityEventRefreshRevoked})
	return nil
}

// openSession mints the access token and persists a refresh token for the
// principal. Shared by every login path; the rotator uses the same policy via
// the token service.
func (a *Authenticator) openSession(ctx context.Context, ref PrincipalRef) (*Session, error) {
	idClaim := ""
	if ref.Kind != RoleAdmin {
		idClaim = ref.ID().String()
	}

	access, err := a.tokens.Generate(ref.Name, ref.Kind, idClaim)
	if err != nil {
		return nil, err
	}

	opaque, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	record, err := NewRefreshToken(ref, opaque, a.now(), a.refreshTTL)
	if err != nil {
		return nil, err
	}

	if _, err := a.repo.RefreshTokens().Create(ctx, record); err != nil {
		return nil, goerrors.Wrap(err, ErrPersistence.Category, "failed to save refresh token")
	}

	a.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: ref.ID().String(), Type: string(ref.Kind)},
		SubjectID: ref.ID().String(),
	})

	return &Session{
		AccessToken:      access,
		RefreshToken:     opaque,
		RefreshExpiresAt: record.ExpiresAt,
		Cookie:           NewRefreshCookie(opaque, record.ExpiresAt),
	}, nil
}

func (a *Authenticator) loginFailure(ctx context.Context, role Role, name string, cause error) error {
	if !repository.IsRecordNotFound(cause) && !errors.Is(cause, ErrMismatchedHashAndPassword) && !errors.Is(cause, ErrNoEmptyString) {
		a.logger.Error("login lookup failed for role %s: %v", role, cause)
		return goerrors.Wrap(cause, ErrPersistence.Category, "failed to verify credentials")
	}

	a.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata:  map[string]any{"role": role, "name": name},
	})

	return ErrInvalidCredentials
}

func (a *Authenticator) ensureNameFree(ctx context.Context, role Role, name string) error {
	var err error
	switch role {
	case RoleAdmin:
		_, err = a.repo.Admins().GetByName(ctx, name)
	case RoleBookOwner:
		_, err = a.repo.Owners().GetByName(ctx, name)
	case RoleReader:
		_, err = a.repo.Readers().GetByName(ctx, name)
	}

	if err == nil {
		return goerrors.New("name already registered", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{"role": role})
	}
	if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, ErrPersistence.Category, "failed to check existing name")
	}
	return nil
}

func (a *Authenticator) emit(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(a.sink)

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}
