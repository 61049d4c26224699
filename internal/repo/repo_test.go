package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepository()

	id, err := r.CreateUser(ctx, "inspector", "i@example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id2, err := r.CreateUser(ctx, "engineer", "e@example.com", "hash2")
	require.NoError(t, err)
	assert.Equal(t, 2, id2)

	_, err = r.CreateUser(ctx, "inspector", "x@example.com", "x")
	assert.ErrorIs(t, err, ErrUserExists)

	gotID, hash, err := r.GetByLogin(ctx, "engineer")
	require.NoError(t, err)
	assert.Equal(t, 2, gotID)
	assert.Equal(t, "hash2", hash)

	_, _, err = r.GetByLogin(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
	assert.False(t, isUniqueViolation(nil))
}
