package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *UserStorage {
	t.Helper()
	s, err := NewUserStorage(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFindUser(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.CreateUser("user-1", "Ada Lovelace", "hunter22"))

	rec, err := s.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user-1", rec.ID)
	assert.Equal(t, "Ada Lovelace", rec.Name)
}

func TestFindByIDAbsent(t *testing.T) {
	s := newTestStorage(t)

	rec, err := s.FindByID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestStorage(t)

	assert.Error(t, s.CreateUser("", "Name", "hunter22"))
	assert.Error(t, s.CreateUser("user-1", "", "hunter22"))
	assert.Error(t, s.CreateUser("user-1", "Name", "short"))

	require.NoError(t, s.CreateUser("user-1", "Name", "hunter22"))
	assert.Error(t, s.CreateUser("user-1", "Name", "hunter22"), "duplicate id must be rejected")
}

func TestVerifyUser(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.CreateUser("user-1", "Name", "hunter22"))

	assert.NoError(t, s.VerifyUser("user-1", "hunter22"))
	assert.Error(t, s.VerifyUser("user-1", "wrong"))
	assert.Error(t, s.VerifyUser("nobody", "hunter22"))
}

func TestFindByIDCancelledContext(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.CreateUser("user-1", "Name", "hunter22"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByID(ctx, "user-1")
	assert.Error(t, err)
}
