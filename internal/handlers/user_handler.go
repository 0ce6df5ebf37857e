package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ssu526/path-builder-backend/internal/httperror"
	"github.com/ssu526/path-builder-backend/internal/services"
	"github.com/ssu526/path-builder-backend/internal/session"
)

// UserHandler handles HTTP requests for signup, login, logout and the current
// user lookup. It binds sessions to cookies on successful signup/login.
type UserHandler struct {
	authService *services.AuthService
	sessions    *session.Store
	cookieName  string
	sessionTTL  time.Duration
	validate    *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService, sessions *session.Store, cookieName string, sessionTTL time.Duration) *UserHandler {
	return &UserHandler{
		authService: authService,
		sessions:    sessions,
		cookieName:  cookieName,
		sessionTTL:  sessionTTL,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the user routes with the Fiber app. requireAuth
// guards only the current-user lookup; signup, login and logout are public.
func (h *UserHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", requireAuth, h.HandleGetAuthenticatedUser)
	userRoutes.Post("/signup", h.HandleSignup)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Post("/logout", h.HandleLogout)
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// firstValidationError turns the first failing field check into the response
// message, e.g. "Username is missing".
func firstValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return httperror.BadRequest("Invalid request body")
	}
	e := validationErrors[0]
	if e.Tag() == "required" {
		return httperror.BadRequest(e.Field() + " is missing")
	}
	return httperror.BadRequest(e.Field() + " is not valid")
}

// bindSession creates a session for userID and sets the cookie on the response.
func (h *UserHandler) bindSession(c *fiber.Ctx, userID string) error {
	token, err := h.sessions.Create(c.Context(), userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.sessionTTL),
		HTTPOnly: true,
	})
	return nil
}

// HandleSignup registers a new user and establishes a session for them.
func (h *UserHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return httperror.BadRequest("Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return firstValidationError(err)
	}

	user, err := h.authService.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}

	if err := h.bindSession(c, user.ID); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleLogin authenticates a user and establishes a session for them.
func (h *UserHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return httperror.BadRequest("Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return firstValidationError(err)
	}

	user, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		return err
	}

	if err := h.bindSession(c, user.ID); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleLogout destroys the current session, if any. Only a session-store
// failure makes this fail.
func (h *UserHandler) HandleLogout(c *fiber.Ctx) error {
	token := c.Cookies(h.cookieName)
	if token != "" {
		if err := h.sessions.Destroy(c.Context(), token); err != nil {
			return err
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.SendStatus(fiber.StatusOK)
}

// HandleGetAuthenticatedUser returns the user bound to the current session.
func (h *UserHandler) HandleGetAuthenticatedUser(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.authService.GetUser(userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}
