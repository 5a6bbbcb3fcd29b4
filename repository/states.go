package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultStateTTL bounds how long an issued state token stays consumable.
const DefaultStateTTL = 10 * time.Minute

// OAuthStatesRepository implements crosspost.OAuthStates using Bun.
type OAuthStatesRepository struct {
	db  *bun.DB
	ttl time.Duration
}

// NewOAuthStatesRepository creates a new repository.
func NewOAuthStatesRepository(db *bun.DB) *OAuthStatesRepository {
	return &OAuthStatesRepository{db: db, ttl: DefaultStateTTL}
}

// NewOAuthStatesRepositoryWithTTL creates a repository with a custom TTL.
func NewOAuthStatesRepositoryWithTTL(db *bun.DB, ttl time.Duration) *OAuthStatesRepository {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &OAuthStatesRepository{db: db, ttl: ttl}
}

// Issue implements crosspost.OAuthStates. Starting a new flow replaces any
// previous state for the user, so only the latest redirect can complete.
func (r *OAuthStatesRepository) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateStateToken()
	if err != nil {
		return "", err
	}

	state := &crosspost.OAuthState{
		State:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(r.ttl),
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*crosspost.OAuthState)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewInsert().Model(state).Exec(ctx)
		return err
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// Consume implements crosspost.OAuthStates. The row is deleted inside the
// same transaction as the lookup, so a token is usable exactly once; expired
// tokens consume as not found.
func (r *OAuthStatesRepository) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, crosspost.ErrStateNotFound
	}

	var userID uuid.UUID
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var state crosspost.OAuthState
		err := tx.NewSelect().
			Model(&state).
			Where("state = ?", token).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return crosspost.ErrStateNotFound
			}
			return err
		}

		if _, err := tx.NewDelete().
			Model((*crosspost.OAuthState)(nil)).
			Where("state = ?", token).
			Exec(ctx); err != nil {
			return err
		}

		if time.Now().After(state.ExpiresAt) {
			return crosspost.ErrStateNotFound
		}

		userID = state.UserID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
