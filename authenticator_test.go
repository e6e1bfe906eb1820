package identity_test

import (
	"context"
	"net/http"
	"testing"

	identity "github.com/bookswap/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T, repo identity.RepositoryManager) *identity.Authenticator {
	t.Helper()

	cipher, err := identity.NewPIICipher(testPIIKey())
	require.NoError(t, err)

	return identity.NewAuthenticator(repo, testTokenService(t), cipher)
}

func TestSignUpOwnerStartsPendingWithEncryptedPII(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	owner, err := auth.SignUpOwner(ctx, identity.OwnerSignup{
		Name:     "owner-one",
		Password: "aPassword123!",
		SSN:      "123-45-6789",
		Email:    "owner@example.com",
		Phone:    "+15551234567",
	})
	require.NoError(t, err)

	assert.Equal(t, identity.ApprovalPending, owner.Status)

	// the stored fields hold ciphertext, never plaintext
	assert.NotEqual(t, "123-45-6789", owner.EncryptedSSN)
	assert.NotEqual(t, "owner@example.com", owner.EncryptedEmail)
	assert.NotEqual(t, "+15551234567", owner.EncryptedPhone)
	assert.NotEqual(t, "aPassword123!", owner.PasswordHash)

	stored, err := repo.Owners().GetByName(ctx, "owner-one")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, stored.ID)
}

func TestSignUpOwnerValidation(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	tests := []struct {
		name  string
		input identity.OwnerSignup
	}{
		{
			name: "Missing name",
			input: identity.OwnerSignup{
				Password: "aPassword123!",
				SSN:      "123-45-6789",
				Email:    "owner@example.com",
				Phone:    "+15551234567",
			},
		},
		{
			name: "Short password",
			input: identity.OwnerSignup{
				Name:     "owner-two",
				Password: "short",
				SSN:      "123-45-6789",
				Email:    "owner@example.com",
				Phone:    "+15551234567",
			},
		},
		{
			name: "Bad email",
			input: identity.OwnerSignup{
				Name:     "owner-three",
				Password: "aPassword123!",
				SSN:      "123-45-6789",
				Email:    "not-an-email",
				Phone:    "+15551234567",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.SignUpOwner(ctx, tt.input)
			assert.Error(t, err)
		})
	}
}

func TestSignUpRejectsDuplicateName(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	input := identity.ReaderSignup{
		Name:     "reader-one",
		Password: "aPassword123!",
		Email:    "reader@example.com",
		Phone:    "+15551234567",
	}

	_, err := auth.SignUpReader(ctx, input)
	require.NoError(t, err)

	_, err = auth.SignUpReader(ctx, input)
	assert.Error(t, err)
}

func TestLoginOwner(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	seedOwner(t, repo, "approved-owner", identity.ApprovalApproved)
	seedOwner(t, repo, "pending-owner", identity.ApprovalPending)
	seedOwner(t, repo, "rejected-owner", identity.ApprovalRejected)

	tests := []struct {
		name    string
		creds   identity.Credentials
		wantErr error
	}{
		{
			name:  "Approved owner logs in",
			creds: identity.Credentials{Name: "approved-owner", Password: "owner-password-1"},
		},
		{
			name:    "Pending owner is told about approval",
			creds:   identity.Credentials{Name: "pending-owner", Password: "owner-password-1"},
			wantErr: identity.ErrNotApproved,
		},
		{
			name:    "Rejected owner is told about approval",
			creds:   identity.Credentials{Name: "rejected-owner", Password: "owner-password-1"},
			wantErr: identity.ErrNotApproved,
		},
		{
			name:    "Pending owner with wrong password gets credentials error",
			creds:   identity.Credentials{Name: "pending-owner", Password: "wrong-password"},
			wantErr: identity.ErrInvalidCredentials,
		},
		{
			name:    "Unknown account",
			creds:   identity.Credentials{Name: "nobody", Password: "owner-password-1"},
			wantErr: identity.ErrInvalidCredentials,
		},
		{
			name:    "Wrong password",
			creds:   identity.Credentials{Name: "approved-owner", Password: "wrong-password"},
			wantErr: identity.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := auth.LoginOwner(ctx, tt.creds)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, session)
			assert.NotEmpty(t, session.AccessToken)
			assert.NotEmpty(t, session.RefreshToken)
		})
	}
}

func TestLoginIssuesRefreshCookie(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	seedReader(t, repo, "reader-one")

	session, err := auth.LoginReader(ctx, identity.Credentials{Name: "reader-one", Password: "reader-password-1"})
	require.NoError(t, err)

	cookie := session.Cookie
	require.NotNil(t, cookie)
	assert.Equal(t, identity.RefreshCookieName, cookie.Name)
	assert.Equal(t, session.RefreshToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, session.RefreshExpiresAt, cookie.Expires)

	// the refresh token landed in storage
	stored, err := repo.RefreshTokens().GetByToken(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleReader, stored.UserType)
	assert.Equal(t, "reader-one", stored.PrincipalName)
}

func TestLoginAdmin(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	seedAdmin(t, repo, "moderator")

	session, err := auth.LoginAdmin(ctx, identity.Credentials{Name: "moderator", Password: "admin-password-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	_, err = auth.LoginAdmin(ctx, identity.Credentials{Name: "moderator", Password: "nope"})
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestLogout(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	ctx := context.Background()

	seedReader(t, repo, "reader-one")

	session, err := auth.LoginReader(ctx, identity.Credentials{Name: "reader-one", Password: "reader-password-1"})
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, session.RefreshToken))

	// the token is gone; logging out twice reports not found
	_, err = repo.RefreshTokens().GetByToken(ctx, session.RefreshToken)
	assert.Error(t, err)

	err = auth.Logout(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	assert.ErrorIs(t, auth.Logout(ctx, ""), identity.ErrNotFound)
}

func TestOwnerPIIAdminOnly(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	tokens := testTokenService(t)
	ctx := context.Background()

	owner, err := auth.SignUpOwner(ctx, identity.OwnerSignup{
		Name:     "owner-one",
		Password: "aPassword123!",
		SSN:      "123-45-6789",
		Email:    "owner@example.com",
		Phone:    "+15551234567",
	})
	require.NoError(t, err)

	admin := claimsFor(t, tokens, "moderator", identity.RoleAdmin, "")

	pii, err := auth.OwnerPII(ctx, admin, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", pii.SSN)
	assert.Equal(t, "owner@example.com", pii.Email)
	assert.Equal(t, "+15551234567", pii.Phone)

	reader := claimsFor(t, tokens, "reader-one", identity.RoleReader, uuid.NewString())
	_, err = auth.OwnerPII(ctx, reader, owner.ID)
	assert.Error(t, err)

	_, err = auth.OwnerPII(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestReaderContactAdminOnly(t *testing.T) {
	repo := setupRepoManager(t)
	auth := newAuthenticator(t, repo)
	tokens := testTokenService(t)
	ctx := context.Background()

	reader, err := auth.SignUpReader(ctx, identity.ReaderSignup{
		Name:     "reader-one",
		Password: "aPassword123!",
		Email:    "reader@example.com",
		Phone:    "+15559876543",
	})
	require.NoError(t, err)

	admin := claimsFor(t, tokens, "moderator", identity.RoleAdmin, "")

	contact, err := auth.ReaderContact(ctx, admin, reader.ID)
	require.NoError(t, err)
	assert.Empty(t, contact.SSN)
	assert.Equal(t, "reader@example.com", contact.Email)
	assert.Equal(t, "+15559876543", contact.Phone)

	self := claimsFor(t, tokens, "reader-one", identity.RoleReader, reader.ID.String())
	_, err = auth.ReaderContact(ctx, self, reader.ID)
	assert.Error(t, err)
}
