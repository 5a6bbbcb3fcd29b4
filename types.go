package crosspost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Platform identifies an external publishing target.
type Platform = string

const (
	// PlatformLinkedIn is the LinkedIn OAuth2 integration
	PlatformLinkedIn Platform = "linkedin"
	// PlatformBluesky is the Bluesky app-password integration
	PlatformBluesky Platform = "bluesky"
)

// KnownPlatform reports whether the given name is a supported platform.
func KnownPlatform(name string) bool {
	return name == PlatformLinkedIn || name == PlatformBluesky
}

// Users manages local account persistence.
type Users interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// ConnectedAccounts manages per-user platform credential rows.
type ConnectedAccounts interface {
	// Upsert atomically replaces any existing (user, platform) row.
	Upsert(ctx context.Context, account *ConnectedAccount) error
	// Find returns the row or ErrNotConnected.
	Find(ctx context.Context, userID uuid.UUID, platform Platform) (*ConnectedAccount, error)
	// List returns connection metadata for a user, never secret fields.
	List(ctx context.Context, userID uuid.UUID) ([]*ConnectedAccountInfo, error)
	// UpdateTokens rotates credentials in place after a refresh exchange.
	UpdateTokens(ctx context.Context, userID uuid.UUID, platform Platform, accessToken, refreshToken string, expiresAt time.Time) error
	// Delete removes the row; deleting a missing row is not an error.
	Delete(ctx context.Context, userID uuid.UUID, platform Platform) error
}

// OAuthStates tracks single-use CSRF state tokens for OAuth redirects.
type OAuthStates interface {
	// Issue invalidates any prior state for the user and returns a new token.
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	// Consume atomically looks up and deletes the token, returning the
	// initiating user or ErrStateNotFound.
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}

// TokenService mints and validates local session tokens.
type TokenService interface {
	Generate(user *User) (string, error)
	Validate(token string) (uuid.UUID, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CROSSPOST "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CROSSPOST "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CROSSPOST "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
