package identity_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	identity "github.com/bookswap/go-identity"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) (*fiber.App, identity.RepositoryManager, identity.TokenService) {
	t.Helper()

	repo := setupRepoManager(t)
	tokens := testTokenService(t)

	cipher, err := identity.NewPIICipher(testPIIKey())
	require.NoError(t, err)

	auth := identity.NewAuthenticator(repo, tokens, cipher)
	rotator := identity.NewRotator(repo, tokens)
	approval := identity.NewApprovalMachine(repo)
	borrow := identity.NewBorrowService(repo)

	app := fiber.New()
	controller := identity.NewIdentityController(auth, rotator, approval, borrow, tokens)
	controller.RegisterRoutes(app)

	return app, repo, tokens
}

func bearerRequest(t *testing.T, tokens identity.TokenService, method, target, name string, role identity.Role, principalID string) *http.Request {
	t.Helper()

	token, err := tokens.Generate(name, role, principalID)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestReaderRequestsRoute(t *testing.T) {
	app, repo, tokens := setupApp(t)
	ctx := context.Background()

	owner := seedOwner(t, repo, "owner-one", identity.ApprovalApproved)
	reader := seedReader(t, repo, "reader-one")
	post := seedPost(t, repo, owner, identity.PostAvailable)

	opened, err := repo.Requests().Open(ctx, &identity.BookRequest{
		PostID:   post.ID,
		ReaderID: reader.ID,
		Status:   identity.RequestPending,
	})
	require.NoError(t, err)

	req := bearerRequest(t, tokens, fiber.MethodGet, "/readers/requests", reader.Name, identity.RoleReader, reader.ID.String())
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var listed []*identity.BookRequest
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, opened.ID, listed[0].ID)
	assert.Equal(t, identity.RequestPending, listed[0].Status)
}

func TestReaderRequestsRouteRejectsOtherRoles(t *testing.T) {
	app, repo, tokens := setupApp(t)

	owner := seedOwner(t, repo, "owner-one", identity.ApprovalApproved)

	req := bearerRequest(t, tokens, fiber.MethodGet, "/readers/requests", owner.Name, identity.RoleBookOwner, owner.ID.String())
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	res, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/readers/requests", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}

func TestAdminPIIRoutes(t *testing.T) {
	app, repo, tokens := setupApp(t)
	ctx := context.Background()

	cipher, err := identity.NewPIICipher(testPIIKey())
	require.NoError(t, err)

	auth := identity.NewAuthenticator(repo, tokens, cipher)
	owner, err := auth.SignUpOwner(ctx, identity.OwnerSignup{
		Name:     "owner-two",
		Password: "aPassword123!",
		SSN:      "987-65-4321",
		Email:    "owner2@example.com",
		Phone:    "+15550001111",
	})
	require.NoError(t, err)

	req := bearerRequest(t, tokens, fiber.MethodGet, "/admin/owners/"+owner.ID.String()+"/pii", "moderator", identity.RoleAdmin, "")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var pii identity.OwnerPII
	require.NoError(t, json.Unmarshal(body, &pii))
	assert.Equal(t, "987-65-4321", pii.SSN)
	assert.Equal(t, "owner2@example.com", pii.Email)

	// non-admins never reach the handler
	req = bearerRequest(t, tokens, fiber.MethodGet, "/admin/owners/"+owner.ID.String()+"/pii", "reader-one", identity.RoleReader, "")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}
