package repository

import (
	"context"
	"database/sql"
	"testing"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersCreateAndFind(t *testing.T) {
	db, _, cleanup := setupBunDB(t)
	defer cleanup()

	repo := NewUsersRepository(db)
	ctx := context.Background()

	user := &crosspost.User{
		Email:        "octo@example.com",
		PasswordHash: "hash",
	}

	err := repo.Create(ctx, user)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	byEmail, err := repo.FindByEmail(ctx, "octo@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", byID.Email)
}

func TestUsersFindByEmailNotFound(t *testing.T) {
	db, _, cleanup := setupBunDB(t)
	defer cleanup()

	repo := NewUsersRepository(db)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUsersCreateDuplicateEmail(t *testing.T) {
	db, _, cleanup := setupBunDB(t)
	defer cleanup()

	repo := NewUsersRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &crosspost.User{Email: "dup@example.com", PasswordHash: "a"}))

	err := repo.Create(ctx, &crosspost.User{Email: "dup@example.com", PasswordHash: "b"})
	require.Error(t, err)
}
