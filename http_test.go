package identity_test

import (
	"net/http"
	"testing"
	"time"

	identity "github.com/bookswap/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestNewRefreshCookie(t *testing.T) {
	expires := time.Now().Add(identity.RefreshTokenTTL)
	cookie := identity.NewRefreshCookie("opaque-token", expires)

	assert.Equal(t, "refreshToken", cookie.Name)
	assert.Equal(t, "opaque-token", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, expires, cookie.Expires)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestClearedRefreshCookie(t *testing.T) {
	cookie := identity.ClearedRefreshCookie()

	assert.Equal(t, "refreshToken", cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "Invalid credentials", err: identity.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "Not approved", err: identity.ErrNotApproved, want: http.StatusForbidden},
		{name: "Already processed", err: identity.ErrAlreadyProcessed, want: http.StatusConflict},
		{name: "Invalid action", err: identity.ErrInvalidAction, want: http.StatusBadRequest},
		{name: "Not available", err: identity.ErrNotAvailable, want: http.StatusConflict},
		{name: "Not found", err: identity.ErrNotFound, want: http.StatusNotFound},
		{name: "Expired refresh", err: identity.ErrExpired, want: http.StatusUnauthorized},
		{name: "Expired access token", err: identity.ErrTokenExpired, want: http.StatusUnauthorized},
		{name: "Persistence", err: identity.ErrPersistence, want: http.StatusInternalServerError},
		{name: "Plain error", err: assert.AnError, want: http.StatusInternalServerError},
		{
			name: "Wrapped keeps the category",
			err:  goerrors.Wrap(assert.AnError, goerrors.CategoryNotFound, "missing"),
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.HTTPStatus(tt.err))
		})
	}
}
