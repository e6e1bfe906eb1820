package identity

import (
	"context"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IdentityController exposes the identity surface over fiber: signup, login,
// refresh, logout, moderation, and the borrow lifecycle. Handlers stay thin;
// every rule lives in the services.
type IdentityController struct {
	Logger   Logger
	Auth     *Authenticator
	Rotator  *Rotator
	Approval *ApprovalMachine
	Borrow   *BorrowService
	Tokens   TokenService
}

type IdentityControllerOption func(*IdentityController) *IdentityController

func WithControllerLogger(logger Logger) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// NewIdentityController wires the services into a route controller.
func NewIdentityController(auth *Authenticator, rotator *Rotator, approval *ApprovalMachine, borrow *BorrowService, tokens TokenService, opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger:   defLogger{},
		Auth:     auth,
		Rotator:  rotator,
		Approval: approval,
		Borrow:   borrow,
		Tokens:   tokens,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil || c.Rotator == nil || c.Approval == nil || c.Borrow == nil || c.Tokens == nil {
		panic("identity controller requires all services")
	}

	return c
}

// RegisterRoutes mounts the identity routes on the app.
func (a *IdentityController) RegisterRoutes(app *fiber.App) {
	auth := app.Group("/auth")
	auth.Post("/owners/signup", a.SignUpOwner).Name("auth.owner.signup")
	auth.Post("/readers/signup", a.SignUpReader).Name("auth.reader.signup")
	auth.Post("/admins/login", a.LoginAdmin).Name("auth.admin.login")
	auth.Post("/owners/login", a.LoginOwner).Name("auth.owner.login")
	auth.Post("/readers/login", a.LoginReader).Name("auth.reader.login")
	auth.Post("/refresh", a.Refresh).Name("auth.refresh")
	auth.Post("/logout", a.Logout).Name("auth.logout")

	admin := app.Group("/admin", Protected(a.Tokens, RoleAdmin))
	admin.Get("/owners/pending", a.PendingOwners).Name("admin.owners.pending")
	admin.Post("/owners/:id/:action", a.ProcessOwner).Name("admin.owners.process")
	admin.Get("/posts/pending", a.PendingPosts).Name("admin.posts.pending")
	admin.Post("/posts/:id/:action", a.ProcessPost).Name("admin.posts.process")
	admin.Get("/owners/:id/pii", a.OwnerPII).Name("admin.owners.pii")
	admin.Get("/readers/:id/contact", a.ReaderContact).Name("admin.readers.contact")

	owner := app.Group("/owners", Protected(a.Tokens, RoleBookOwner))
	owner.Post("/posts", a.PublishPost).Name("owner.posts.create")
	owner.Get("/requests", a.OwnerRequests).Name("owner.requests.list")
	owner.Post("/requests/:id/:action", a.Respond).Name("owner.requests.respond")

	reader := app.Group("/readers", Protected(a.Tokens, RoleReader))
	reader.Get("/posts", a.AvailablePosts).Name("reader.posts.available")
	reader.Post("/posts/:id/borrow", a.BorrowPost).Name("reader.posts.borrow")
	reader.Get("/requests", a.ReaderRequests).Name("reader.requests.list")
	reader.Post("/requests/:id/return", a.Return).Name("reader.requests.return")
}

func (a *IdentityController) SignUpOwner(c *fiber.Ctx) error {
	payload := new(OwnerSignup)
	if err := c.BodyParser(payload); err != nil {
		return RenderError(c, badBody(err))
	}

	owner, err := a.Auth.SignUpOwner(c.UserContext(), *payload)
	if err != nil {
		return RenderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(owner)
}

func (a *IdentityController) SignUpReader(c *fiber.Ctx) error {
	payload := new(ReaderSignup)
	if err := c.BodyParser(payload); err != nil {
		return RenderError(c, badBody(err))
	}

	reader, err := a.Auth.SignUpReader(c.UserContext(), *payload)
	if err != nil {
		return RenderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reader)
}

func (a *IdentityController) LoginAdmin(c *fiber.Ctx) error {
	return a.login(c, a.Auth.LoginAdmin)
}

func (a *IdentityController) LoginOwner(c *fiber.Ctx) error {
	return a.login(c, a.Auth.LoginOwner)
}

func (a *IdentityController) LoginReader(c *fiber.Ctx) error {
	return a.login(c, a.Auth.LoginReader)
}

func (a *IdentityController) login(c *fiber.Ctx, fn func(ctx context.Context, creds Credentials) (*Session, error)) error {
	payload := new(Credentials)
	if err := c.BodyParser(payload); err != nil {
		return RenderError(c, badBody(err))
	}

	session, err := fn(c.UserContext(), *payload)
	if err != nil {
		a.Logger.Info("login failed: %v", err)
		return RenderError(c, err)
	}

	SetSessionCookie(c, session)
	return c.JSON(fiber.Map{"access_token": session.AccessToken})
}

// Refresh rotates the refresh token presented in the cookie and returns a new
// access token. The replacement cookie rides on the response.
func (a *IdentityController) Refresh(c *fiber.Ctx) error {
	session, err := a.Rotator.Rotate(c.UserContext(), ReadRefreshCookie(c))
	if err != nil {
		ClearSessionCookie(c)
		return RenderError(c, err)
	}

	SetSessionCookie(c, session)
	return c.JSON(fiber.Map{"access_token": session.AccessToken})
}

func (a *IdentityController) Logout(c *fiber.Ctx) error {
	err := a.Auth.Logout(c.UserContext(), ReadRefreshCookie(c))
	ClearSessionCookie(c)
	if err != nil {
		return RenderError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *IdentityController) PendingOwners(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)
	owners, err := a.Approval.PendingOwners(c.UserContext(), claims)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(owners)
}

func (a *IdentityController) ProcessOwner(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	action, err := ParseAction(c.Params("action"))
	if err != nil {
		return RenderError(c, err)
	}

	owner, err := a.Approval.ProcessBookOwner(c.UserContext(), claims, id, action)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(owner)
}

func (a *IdentityController) PendingPosts(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)
	posts, err := a.Approval.PendingPosts(c.UserContext(), claims)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(posts)
}

func (a *IdentityController) ProcessPost(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	action, err := ParseAction(c.Params("action"))
	if err != nil {
		return RenderError(c, err)
	}

	post, err := a.Approval.ProcessBookPost(c.UserContext(), claims, id, action)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(post)
}

func (a *IdentityController) OwnerPII(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	pii, err := a.Auth.OwnerPII(c.UserContext(), claims, id)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(pii)
}

func (a *IdentityController) ReaderContact(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	contact, err := a.Auth.ReaderContact(c.UserContext(), claims, id)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(contact)
}

func (a *IdentityController) PublishPost(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	payload := new(PostInput)
	if err := c.BodyParser(payload); err != nil {
		return RenderError(c, badBody(err))
	}

	post, err := a.Borrow.PublishPost(c.UserContext(), claims, *payload)
	if err != nil {
		return RenderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (a *IdentityController) OwnerRequests(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)
	requests, err := a.Borrow.RequestsForOwner(c.UserContext(), claims)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(requests)
}

func (a *IdentityController) ReaderRequests(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)
	requests, err := a.Borrow.RequestsForReader(c.UserContext(), claims)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(requests)
}

func (a *IdentityController) Respond(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	action, err := ParseAction(c.Params("action"))
	if err != nil {
		return RenderError(c, err)
	}

	request, err := a.Borrow.Respond(c.UserContext(), claims, id, action)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(request)
}

func (a *IdentityController) AvailablePosts(c *fiber.Ctx) error {
	posts, err := a.Borrow.AvailablePosts(c.UserContext())
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(posts)
}

func (a *IdentityController) BorrowPost(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	request, err := a.Borrow.Borrow(c.UserContext(), claims, id)
	if err != nil {
		return RenderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

func (a *IdentityController) Return(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c)

	id, err := pathUUID(c, "id")
	if err != nil {
		return RenderError(c, err)
	}

	request, err := a.Borrow.Return(c.UserContext(), claims, id)
	if err != nil {
		return RenderError(c, err)
	}
	return c.JSON(request)
}

func pathUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid id parameter").
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
		WithCode(goerrors.CodeBadRequest)
}
