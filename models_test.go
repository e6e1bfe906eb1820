package identity_test

import (
	"testing"
	"time"

	identity "github.com/bookswap/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   identity.Role
		wantOK bool
	}{
		{name: "Admin", raw: "Admin", want: identity.RoleAdmin, wantOK: true},
		{name: "BookOwner", raw: "BookOwner", want: identity.RoleBookOwner, wantOK: true},
		{name: "Reader", raw: "Reader", want: identity.RoleReader, wantOK: true},
		{name: "Lowercase", raw: "reader", want: identity.RoleReader, wantOK: true},
		{name: "Unknown", raw: "Superuser", wantOK: false},
		{name: "Empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := identity.ParseRole(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRoleTokenTTL(t *testing.T) {
	assert.Equal(t, time.Hour, identity.RoleAdmin.TokenTTL())
	assert.Equal(t, 2*time.Hour, identity.RoleBookOwner.TokenTTL())
	assert.Equal(t, 2*time.Hour, identity.RoleReader.TokenTTL())
}

func TestRoleIDClaim(t *testing.T) {
	assert.Equal(t, "", identity.RoleAdmin.IDClaim())
	assert.Equal(t, "bookOwnerId", identity.RoleBookOwner.IDClaim())
	assert.Equal(t, "readerId", identity.RoleReader.IDClaim())
}

func TestPrincipalRefValidate(t *testing.T) {
	id := uuid.New()
	other := uuid.New()

	tests := []struct {
		name    string
		ref     identity.PrincipalRef
		wantErr bool
	}{
		{
			name: "Valid admin ref",
			ref:  identity.AdminRef(id, "moderator"),
		},
		{
			name: "Valid owner ref",
			ref:  identity.OwnerRef(id, "owner-one"),
		},
		{
			name: "Valid reader ref",
			ref:  identity.ReaderRef(id, "reader-one"),
		},
		{
			name:    "No ids set",
			ref:     identity.PrincipalRef{Kind: identity.RoleAdmin, Name: "moderator"},
			wantErr: true,
		},
		{
			name: "Two ids set",
			ref: identity.PrincipalRef{
				Kind:        identity.RoleBookOwner,
				Name:        "owner-one",
				BookOwnerID: &id,
				ReaderID:    &other,
			},
			wantErr: true,
		},
		{
			name: "Id does not match kind",
			ref: identity.PrincipalRef{
				Kind:     identity.RoleBookOwner,
				Name:     "owner-one",
				ReaderID: &id,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, id, tt.ref.ID())
		})
	}
}

func TestNewRefreshToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ownerID := uuid.New()

	token, err := identity.NewRefreshToken(identity.OwnerRef(ownerID, "owner-one"), "opaque-token", now, 0)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, token.ID)
	assert.Equal(t, "opaque-token", token.Token)
	assert.Equal(t, identity.RoleBookOwner, token.UserType)
	assert.Equal(t, "owner-one", token.PrincipalName)
	assert.Equal(t, now.Add(identity.RefreshTokenTTL), token.ExpiresAt)

	assert.False(t, token.IsExpired(now))
	assert.False(t, token.IsExpired(now.Add(identity.RefreshTokenTTL-time.Second)))
	assert.True(t, token.IsExpired(now.Add(identity.RefreshTokenTTL)))

	ref, err := token.Principal()
	require.NoError(t, err)
	assert.Equal(t, ownerID, ref.ID())
	assert.Equal(t, identity.RoleBookOwner, ref.Kind)
}

func TestNewRefreshTokenRejectsInvalidRef(t *testing.T) {
	_, err := identity.NewRefreshToken(identity.PrincipalRef{Kind: identity.RoleReader, Name: "x"}, "opaque", time.Now(), 0)
	assert.Error(t, err)
}

func TestBookPostOfferable(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	post := &identity.BookPost{
		Status:    identity.PostAvailable,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(p *identity.BookPost)
		at     time.Time
		want   bool
	}{
		{
			name:   "Available inside window",
			mutate: func(p *identity.BookPost) {},
			at:     now,
			want:   true,
		},
		{
			name:   "At window start",
			mutate: func(p *identity.BookPost) {},
			at:     post.StartDate,
			want:   true,
		},
		{
			name:   "At window end",
			mutate: func(p *identity.BookPost) {},
			at:     post.EndDate,
			want:   true,
		},
		{
			name:   "Before window",
			mutate: func(p *identity.BookPost) {},
			at:     post.StartDate.Add(-time.Minute),
			want:   false,
		},
		{
			name:   "After window",
			mutate: func(p *identity.BookPost) {},
			at:     post.EndDate.Add(time.Minute),
			want:   false,
		},
		{
			name:   "Pending",
			mutate: func(p *identity.BookPost) { p.Status = identity.PostPending },
			at:     now,
			want:   false,
		},
		{
			name:   "Borrowed",
			mutate: func(p *identity.BookPost) { p.Status = identity.PostBorrowed },
			at:     now,
			want:   false,
		},
		{
			name:   "Rejected",
			mutate: func(p *identity.BookPost) { p.Status = identity.PostRejected },
			at:     now,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := *post
			tt.mutate(&p)
			assert.Equal(t, tt.want, p.Offerable(tt.at))
		})
	}
}

func TestEnsureStatusDefaults(t *testing.T) {
	owner := &identity.BookOwner{}
	owner.EnsureStatus()
	assert.Equal(t, identity.ApprovalPending, owner.Status)

	post := &identity.BookPost{}
	post.EnsureStatus()
	assert.Equal(t, identity.PostPending, post.Status)

	request := &identity.BookRequest{}
	request.EnsureStatus()
	assert.Equal(t, identity.RequestPending, request.Status)
}
