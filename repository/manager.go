// Package repository implements the crosspost persistence interfaces with Bun.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/uptrace/bun"
)

// Manager bundles the repositories sharing one database handle.
type Manager interface {
	Users() crosspost.Users
	ConnectedAccounts() crosspost.ConnectedAccounts
	OAuthStates() crosspost.OAuthStates
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	db       *bun.DB
	users    crosspost.Users
	accounts crosspost.ConnectedAccounts
	states   crosspost.OAuthStates
}

func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		accounts: NewConnectedAccountsRepository(db),
		states:   NewOAuthStatesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.states == nil {
		return errors.New("repository states should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() crosspost.Users {
	return m.users
}

func (m mngr) ConnectedAccounts() crosspost.ConnectedAccounts {
	return m.accounts
}

func (m mngr) OAuthStates() crosspost.OAuthStates {
	return m.states
}
