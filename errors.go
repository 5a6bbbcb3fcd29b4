package crosspost

import "github.com/goliatone/go-errors"

const (
	TextCodeNotConnected       = "account_not_connected"
	TextCodeReauthRequired     = "reauth_required"
	TextCodeAuthExchangeFailed = "auth_exchange_failed"
	TextCodeStateNotFound      = "oauth_state_not_found"
	TextCodeInvalidPlatform    = "invalid_platform"
	TextCodeUploadFailed       = "media_upload_failed"
	TextCodePublishFailed      = "publish_failed"
	TextCodeEmailExists        = "email_exists"
	TextCodeInvalidCredentials = "invalid_credentials"
)

// ErrNotConnected is returned when a user has no credential row for a platform.
var ErrNotConnected = errors.New("account not connected", errors.CategoryNotFound).
	WithTextCode(TextCodeNotConnected).
	WithCode(errors.CodeNotFound)

// ErrReauthRequired is returned when a token is dead and the connection must
// be redone from scratch, not merely retried.
var ErrReauthRequired = errors.New("token expired, please reconnect your account", errors.CategoryAuth).
	WithTextCode(TextCodeReauthRequired).
	WithCode(errors.CodeUnauthorized)

// ErrAuthExchangeFailed is returned when a platform rejects a code or credentials.
var ErrAuthExchangeFailed = errors.New("authorization exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeAuthExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrStateNotFound is returned when an OAuth state token is missing, unknown,
// or already consumed.
var ErrStateNotFound = errors.New("oauth state not found", errors.CategoryBadInput).
	WithTextCode(TextCodeStateNotFound).
	WithCode(errors.CodeBadRequest)

// ErrInvalidPlatform is returned for unrecognized platform names.
var ErrInvalidPlatform = errors.New("invalid platform", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidPlatform).
	WithCode(errors.CodeBadRequest)

// ErrUploadFailed is returned when a media upload step fails.
var ErrUploadFailed = errors.New("media upload failed", errors.CategoryOperation).
	WithTextCode(TextCodeUploadFailed).
	WithCode(errors.CodeInternal)

// ErrPublishFailed is returned when the final post call is rejected.
var ErrPublishFailed = errors.New("publish failed", errors.CategoryOperation).
	WithTextCode(TextCodePublishFailed).
	WithCode(errors.CodeInternal)

// ErrEmailAlreadyExists is returned when signup reuses a registered email.
var ErrEmailAlreadyExists = errors.New("email already registered", errors.CategoryValidation).
	WithTextCode(TextCodeEmailExists).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials is returned for a failed local login.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)
