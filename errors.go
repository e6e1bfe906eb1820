package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeNotApproved        = "NOT_APPROVED"
	textCodeAlreadyProcessed   = "ALREADY_PROCESSED"
	textCodeInvalidAction      = "INVALID_ACTION"
	textCodeNotAvailable       = "NOT_AVAILABLE"
	textCodeMismatch           = "MISMATCH"
	textCodeNotFound           = "NOT_FOUND"
	textCodeExpired            = "EXPIRED"
	textCodeTokenExpired       = "TOKEN_EXPIRED"
	textCodeTokenMalformed     = "TOKEN_MALFORMED"
	textCodeCrypto             = "CRYPTO_ERROR"
	textCodePersistence        = "PERSISTENCE_FAILURE"
)

// ErrInvalidCredentials is returned when the identifier/password pair does not
// match a stored credential. Deliberately indistinguishable between "unknown
// name" and "wrong password".
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotApproved is returned when a book owner authenticates correctly but the
// account has not been approved by an admin. Distinct from
// ErrInvalidCredentials so clients can render "awaiting approval".
var ErrNotApproved = goerrors.New("account is not approved", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotApproved).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyProcessed is returned when a one-shot transition targets an entity
// that already left its Pending (or Accepted, for returns) state.
var ErrAlreadyProcessed = goerrors.New("request already processed", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyProcessed).
	WithCode(goerrors.CodeConflict)

// ErrInvalidAction is returned for action strings outside approve/reject or
// response statuses outside Accepted/Rejected.
var ErrInvalidAction = goerrors.New("invalid action", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidAction).
	WithCode(goerrors.CodeBadRequest)

// ErrNotAvailable is returned when a borrow targets a post that is not
// currently offerable (wrong status or outside its borrowing window).
var ErrNotAvailable = goerrors.New("book is not available", goerrors.CategoryConflict).
	WithTextCode(textCodeNotAvailable).
	WithCode(goerrors.CodeConflict)

// ErrMismatch is returned when request/post/reader identifiers disagree, or
// when the authenticated principal is not the party the operation requires.
var ErrMismatch = goerrors.New("request details mismatch", goerrors.CategoryValidation).
	WithTextCode(textCodeMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrNotFound is returned when a referenced entity or refresh token does not
// exist (including a token already consumed by a concurrent rotation).
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrExpired is returned when a presented refresh token is past its absolute
// expiry. The row is gone afterwards; retrying yields ErrNotFound.
var ErrExpired = goerrors.New("refresh token has expired", goerrors.CategoryAuth).
	WithTextCode(textCodeExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned by access-token validation for expired JWTs.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for access tokens that fail signature, issuer,
// audience, or structural checks.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrCrypto is returned when ciphertext cannot be decrypted (truncated,
// tampered, or encrypted under a different key).
var ErrCrypto = goerrors.New("crypto operation failed", goerrors.CategoryOperation).
	WithTextCode(textCodeCrypto).
	WithCode(goerrors.CodeInternal)

// ErrPersistence is returned when a multi-entity transition cannot be applied
// atomically. The enclosing transaction has been rolled back.
var ErrPersistence = goerrors.New("persistence failure", goerrors.CategoryInternal).
	WithTextCode(textCodePersistence).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString rejects empty passwords and hashes before they reach bcrypt.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low-level bcrypt mismatch signal.
// Authentication flows surface it as ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// annotate returns a per-failure copy of a shared sentinel carrying request
// metadata. WithMetadata mutates its receiver, so the sentinels above must
// never be annotated directly: concurrent handlers would race on the shared
// map and details would bleed across requests. The copy wraps the sentinel,
// keeping errors.Is matches intact.
func annotate(sentinel *goerrors.Error, metadata map[string]any) *goerrors.Error {
	return goerrors.Wrap(sentinel, sentinel.Category, sentinel.Message).
		WithCode(sentinel.Code).
		WithTextCode(sentinel.TextCode).
		WithMetadata(metadata)
}
