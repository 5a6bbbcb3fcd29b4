package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConnectedAccountsRepository implements crosspost.ConnectedAccounts using Bun.
type ConnectedAccountsRepository struct {
	db *bun.DB
}

// NewConnectedAccountsRepository creates a new repository.
func NewConnectedAccountsRepository(db *bun.DB) *ConnectedAccountsRepository {
	return &ConnectedAccountsRepository{db: db}
}

// Upsert implements crosspost.ConnectedAccounts. The conflict clause makes a
// reconnect a single atomic replace; there is never a window with no row.
func (r *ConnectedAccountsRepository) Upsert(ctx context.Context, account *crosspost.ConnectedAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(account).
		On("CONFLICT (user_id, platform) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("platform_user_id = EXCLUDED.platform_user_id").
		Set("handle = EXCLUDED.handle").
		Set("app_password = EXCLUDED.app_password").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// Find implements crosspost.ConnectedAccounts.
func (r *ConnectedAccountsRepository) Find(ctx context.Context, userID uuid.UUID, platform crosspost.Platform) (*crosspost.ConnectedAccount, error) {
	var account crosspost.ConnectedAccount
	err := r.db.NewSelect().
		Model(&account).
		Where("user_id = ? AND platform = ?", userID, platform).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, crosspost.ErrNotConnected
		}
		return nil, err
	}
	return &account, nil
}

// List implements crosspost.ConnectedAccounts. Secret columns are never
// selected, so they cannot leak through this path.
func (r *ConnectedAccountsRepository) List(ctx context.Context, userID uuid.UUID) ([]*crosspost.ConnectedAccountInfo, error) {
	var accounts []crosspost.ConnectedAccount
	err := r.db.NewSelect().
		Model(&accounts).
		Column("id", "platform", "platform_user_id", "handle", "created_at").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*crosspost.ConnectedAccountInfo{}, nil
		}
		return nil, err
	}

	infos := make([]*crosspost.ConnectedAccountInfo, len(accounts))
	for i, a := range accounts {
		infos[i] = &crosspost.ConnectedAccountInfo{
			ID:             a.ID,
			Platform:       a.Platform,
			PlatformUserID: a.PlatformUserID,
			Handle:         a.Handle,
			CreatedAt:      a.CreatedAt,
		}
	}
	return infos, nil
}

// UpdateTokens implements crosspost.ConnectedAccounts. A single UPDATE keeps
// the rotation atomic: readers see either the old or the new credential set.
func (r *ConnectedAccountsRepository) UpdateTokens(ctx context.Context, userID uuid.UUID, platform crosspost.Platform, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*crosspost.ConnectedAccount)(nil)).
		Set("access_token = ?", accessToken).
		Set("refresh_token = ?", refreshToken).
		Set("token_expires_at = ?", expiresAt).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND platform = ?", userID, platform).
		Exec(ctx)
	return err
}

// Delete implements crosspost.ConnectedAccounts. Deleting a missing row
// succeeds.
func (r *ConnectedAccountsRepository) Delete(ctx context.Context, userID uuid.UUID, platform crosspost.Platform) error {
	_, err := r.db.NewDelete().
		Model((*crosspost.ConnectedAccount)(nil)).
		Where("user_id = ? AND platform = ?", userID, platform).
		Exec(ctx)
	return err
}
