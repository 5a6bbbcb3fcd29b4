package crosspost

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
)

// Authenticator handles local account signup and login.
type Authenticator struct {
	users  Users
	tokens TokenService
	logger Logger
}

// NewAuthenticator creates a local account authenticator.
func NewAuthenticator(users Users, tokens TokenService, logger Logger) *Authenticator {
	if logger == nil {
		logger = defLogger{}
	}
	return &Authenticator{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// SignUp creates a local account and returns the user with a session token.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	if _, err := a.users.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailAlreadyExists
	} else if !goerrors.Is(err, sql.ErrNoRows) {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
	}

	if err := a.users.Create(ctx, user); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	token, err := a.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Login verifies credentials and returns the user with a session token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := a.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
