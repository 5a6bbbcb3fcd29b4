package crosspost

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-crosspost/platform/bluesky"
	"github.com/goliatone/go-crosspost/platform/linkedin"
)

// SettingsControllerConfig configures the account settings controller.
type SettingsControllerConfig struct {
	// FrontendURL is the base URL redirected to after the OAuth callback.
	FrontendURL string
	// CurrentUser resolves the authenticated user.
	CurrentUser CurrentUserFunc
}

// SettingsController manages connected platform accounts: listing, the
// LinkedIn OAuth connect flow, Bluesky credential connect, and disconnect.
type SettingsController struct {
	accounts ConnectedAccounts
	states   OAuthStates
	tokens   *TokenManager
	linkedin *linkedin.Provider
	bluesky  *bluesky.Provider
	config   SettingsControllerConfig
	logger   Logger
}

// NewSettingsController creates the settings controller.
func NewSettingsController(
	accounts ConnectedAccounts,
	states OAuthStates,
	tokens *TokenManager,
	li *linkedin.Provider,
	bs *bluesky.Provider,
	config SettingsControllerConfig,
	logger Logger,
) *SettingsController {
	if logger == nil {
		logger = defLogger{}
	}
	return &SettingsController{
		accounts: accounts,
		states:   states,
		tokens:   tokens,
		linkedin: li,
		bluesky:  bs,
		config:   config,
		logger:   logger,
	}
}

// RegisterRoutes mounts the settings endpoints on the given router group.
func (c *SettingsController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/accounts", c.ListAccounts)
	group.Get("/linkedin/status", c.LinkedInStatus)
	group.Get("/linkedin/connect", c.LinkedInConnect)
	group.Get("/linkedin/callback", c.LinkedInCallback)
	group.Post("/bluesky/connect", c.BlueskyConnect)
	group.Delete("/accounts/:platform", c.Disconnect)
}

func (c *SettingsController) settingsURL() string {
	return c.config.FrontendURL + "/settings"
}

// ListAccounts returns the current user's connected accounts. Credential
// fields are never included.
func (c *SettingsController) ListAccounts(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	accounts, err := c.accounts.List(ctx.Context(), userID)
	if err != nil {
		c.logger.Error("SettingsController list accounts failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"accounts": accounts})
}

// LinkedInStatus reports the LinkedIn token state for the current user.
func (c *SettingsController) LinkedInStatus(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	status, err := c.tokens.Status(ctx.Context(), userID)
	if err != nil {
		c.logger.Error("SettingsController linkedin status failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, status)
}

// LinkedInConnect issues a state token for the current user and returns the
// LinkedIn authorization URL for the frontend to navigate to.
func (c *SettingsController) LinkedInConnect(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	state, err := c.states.Issue(ctx.Context(), userID)
	if err != nil {
		c.logger.Error("SettingsController state issue failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"url": c.linkedin.AuthCodeURL(state),
	})
}

// LinkedInCallback completes the OAuth flow. The user is recovered from the
// state token alone: this is a cross-site redirect and the session cookie may
// not be sent, so the state is the only channel we trust. All outcomes
// redirect back to the frontend settings page.
func (c *SettingsController) LinkedInCallback(ctx router.Context) error {
	settingsURL := c.settingsURL()

	if errCode := ctx.Query("error"); errCode != "" {
		c.logger.Info("LinkedIn callback returned error=%s", errCode)
		return ctx.Redirect(appendQueryParam(settingsURL, "error", errCode), router.StatusTemporaryRedirect)
	}

	userID, err := c.states.Consume(ctx.Context(), ctx.Query("state"))
	if err != nil {
		c.logger.Error("SettingsController state consume failed: %v", err)
		return ctx.Redirect(appendQueryParam(settingsURL, "error", "not_logged_in"), router.StatusTemporaryRedirect)
	}

	code := ctx.Query("code")
	if code == "" {
		return ctx.Redirect(appendQueryParam(settingsURL, "error", "no_code"), router.StatusTemporaryRedirect)
	}

	token, err := c.linkedin.Exchange(ctx.Context(), code)
	if err != nil {
		c.logger.Error("SettingsController code exchange failed: %v", err)
		return ctx.Redirect(appendQueryParam(settingsURL, "error", "exchange_failed"), router.StatusTemporaryRedirect)
	}

	profile, err := c.linkedin.UserInfo(ctx.Context(), token.AccessToken)
	if err != nil {
		c.logger.Error("SettingsController userinfo failed: %v", err)
		return ctx.Redirect(appendQueryParam(settingsURL, "error", "userinfo_failed"), router.StatusTemporaryRedirect)
	}

	expiresAt := token.ExpiresAt
	account := &ConnectedAccount{
		UserID:         userID,
		Platform:       PlatformLinkedIn,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: &expiresAt,
		PlatformUserID: profile.Sub,
		Handle:         profile.Name,
	}

	if err := c.accounts.Upsert(ctx.Context(), account); err != nil {
		c.logger.Error("SettingsController account upsert failed: %v", err)
		return ctx.Redirect(appendQueryParam(settingsURL, "error", "save_failed"), router.StatusTemporaryRedirect)
	}

	return ctx.Redirect(appendQueryParam(settingsURL, "linkedin", "connected"), router.StatusTemporaryRedirect)
}

// BlueskyConnectPayload is the Bluesky connect request body.
type BlueskyConnectPayload struct {
	Handle      string `json:"handle" form:"handle"`
	AppPassword string `json:"app_password" form:"app_password"`
}

// Validate runs validation rules
func (p BlueskyConnectPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Handle, validation.Required),
		validation.Field(&p.AppPassword, validation.Required),
	)
}

// BlueskyConnect verifies the handle and app password against the Bluesky
// service before storing them.
func (c *SettingsController) BlueskyConnect(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	payload := BlueskyConnectPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	session, err := c.bluesky.Login(ctx.Context(), payload.Handle, payload.AppPassword)
	if err != nil {
		c.logger.Error("SettingsController bluesky login failed: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "Bluesky login failed. Check your handle and app password.",
		})
	}

	account := &ConnectedAccount{
		UserID:         userID,
		Platform:       PlatformBluesky,
		AppPassword:    payload.AppPassword,
		PlatformUserID: session.DID,
		Handle:         session.Handle,
	}

	if err := c.accounts.Upsert(ctx.Context(), account); err != nil {
		c.logger.Error("SettingsController account upsert failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"handle":  session.Handle,
		"did":     session.DID,
	})
}

// Disconnect removes a connected account. Unknown platform names are
// rejected; deleting an account that is not connected succeeds.
func (c *SettingsController) Disconnect(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	name := ctx.Param("platform")
	if !KnownPlatform(name) {
		return jsonError(ctx, ErrInvalidPlatform)
	}

	if err := c.accounts.Delete(ctx.Context(), userID, name); err != nil {
		c.logger.Error("SettingsController disconnect failed: %v", err)
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}
