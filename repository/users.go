package repository

import (
	"context"
	"time"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsersRepository implements crosspost.Users using Bun.
type UsersRepository struct {
	db *bun.DB
}

// NewUsersRepository creates a new repository.
func NewUsersRepository(db *bun.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create implements crosspost.Users.
func (r *UsersRepository) Create(ctx context.Context, user *crosspost.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt == nil {
		now := time.Now()
		user.CreatedAt = &now
	}

	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

// FindByEmail implements crosspost.Users.
func (r *UsersRepository) FindByEmail(ctx context.Context, email string) (*crosspost.User, error) {
	var user crosspost.User
	err := r.db.NewSelect().
		Model(&user).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID implements crosspost.Users.
func (r *UsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*crosspost.User, error) {
	var user crosspost.User
	err := r.db.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
