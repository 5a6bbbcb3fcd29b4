package crosspost

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controllers.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// CurrentUserFunc resolves the authenticated user for a request.
type CurrentUserFunc func(ctx router.Context) (uuid.UUID, error)

// ErrUnauthenticated is returned when a request carries no usable session.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode("authentication_required").
	WithCode(goerrors.CodeUnauthorized)

// CookieSessionResolver resolves the current user from a session JWT cookie.
func CookieSessionResolver(tokens TokenService, cookieName string) CurrentUserFunc {
	return func(ctx router.Context) (uuid.UUID, error) {
		token := ctx.Cookies(cookieName)
		if token == "" {
			return uuid.Nil, ErrUnauthenticated
		}

		userID, err := tokens.Validate(token)
		if err != nil {
			return uuid.Nil, ErrUnauthenticated
		}

		return userID, nil
	}
}

func jsonError(ctx router.Context, err error) error {
	var validationErrs validation.Errors
	if goerrors.As(err, &validationErrs) {
		return ctx.JSON(router.StatusBadRequest, map[string]any{"error": validationErrs.Error()})
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	return ctx.JSON(richErr.Code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func setSessionCookie(ctx router.Context, name, value string, duration time.Duration, secure bool) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}

func clearSessionCookie(ctx router.Context, name string, secure bool) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
