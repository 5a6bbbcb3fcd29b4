package crosspost

import (
	"database/sql"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthControllerConfig configures the local account controller.
type AuthControllerConfig struct {
	// CookieName is the session cookie. Defaults to "session".
	CookieName string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// SessionTTL bounds the session cookie lifetime. Defaults to 7 days.
	SessionTTL time.Duration
	// CurrentUser resolves the authenticated user for /me.
	CurrentUser CurrentUserFunc
}

func (c AuthControllerConfig) withDefaults() AuthControllerConfig {
	if c.CookieName == "" {
		c.CookieName = "session"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	return c
}

// AuthController exposes signup, login, logout and session introspection.
type AuthController struct {
	auth   *Authenticator
	users  Users
	config AuthControllerConfig
	logger Logger
}

// NewAuthController creates the local account controller.
func NewAuthController(auth *Authenticator, users Users, config AuthControllerConfig, logger Logger) *AuthController {
	if logger == nil {
		logger = defLogger{}
	}
	return &AuthController{
		auth:   auth,
		users:  users,
		config: config.withDefaults(),
		logger: logger,
	}
}

// RegisterRoutes mounts the auth endpoints on the given router group.
func (c *AuthController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/signup", c.SignUp)
	group.Post("/login", c.Login)
	group.Post("/logout", c.Logout)
	group.Get("/me", c.Me)
}

// CredentialsPayload is the signup and login request body.
type CredentialsPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate runs validation rules
func (p CredentialsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 72)),
	)
}

// SignUp creates a local account and starts a session.
func (c *AuthController) SignUp(ctx router.Context) error {
	payload := CredentialsPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	user, token, err := c.auth.SignUp(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		c.logger.Error("AuthController signup failed: %v", err)
		return jsonError(ctx, err)
	}

	setSessionCookie(ctx, c.config.CookieName, token, c.config.SessionTTL, c.config.CookieSecure)

	return ctx.JSON(router.StatusCreated, map[string]any{"user": user})
}

// Login verifies credentials and starts a session.
func (c *AuthController) Login(ctx router.Context) error {
	payload := CredentialsPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	user, token, err := c.auth.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return jsonError(ctx, err)
	}

	setSessionCookie(ctx, c.config.CookieName, token, c.config.SessionTTL, c.config.CookieSecure)

	return ctx.JSON(router.StatusOK, map[string]any{"user": user})
}

// Logout clears the session cookie.
func (c *AuthController) Logout(ctx router.Context) error {
	clearSessionCookie(ctx, c.config.CookieName, c.config.CookieSecure)
	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

// Me returns the current user, or null when the request has no session.
func (c *AuthController) Me(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return ctx.JSON(router.StatusOK, map[string]any{"user": nil})
	}

	user, err := c.users.FindByID(ctx.Context(), userID)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return ctx.JSON(router.StatusOK, map[string]any{"user": nil})
		}
		c.logger.Error("AuthController me lookup failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"user": user})
}
