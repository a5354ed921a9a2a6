package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantql/internal/core"
)

func TestRegistry_CreateEncryptsSecrets(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "owner@example.com")

	conn, err := env.registry.Create(context.Background(), user.ID, CreateConnectionInput{
		Name:         "prod warehouse",
		Dialect:      core.DialectPostgres,
		Host:         "db.internal",
		Port:         5432,
		DatabaseName: "warehouse",
		Username:     "analyst",
		Password:     "hunter2",
	})
	require.NoError(t, err)
	require.NotEmpty(t, conn.ID)
	assert.True(t, conn.IsActive)

	// Stored ciphertext decrypts back to the original secret.
	assert.NotEqual(t, "hunter2", conn.PasswordEnc)
	plain, err := env.vault.Decrypt(conn.PasswordEnc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	dsn, err := env.vault.Decrypt(conn.ConnectionStringEnc)
	require.NoError(t, err)
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "hunter2")
}

func TestRegistry_CreateRejectsUnknownDialect(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "owner@example.com")

	_, err := env.registry.Create(context.Background(), user.ID, CreateConnectionInput{
		Name:    "bad",
		Dialect: "oracle",
	})
	assert.Error(t, err)

	_, err = env.registry.Create(context.Background(), user.ID, CreateConnectionInput{
		Dialect: core.DialectSQLite,
	})
	assert.Error(t, err, "name is required")
}

func TestRegistry_ListForUserOnlyActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")

	a := env.createSQLiteConnection(t, user.ID, "a", "a.db")
	env.createSQLiteConnection(t, user.ID, "b", "b.db")
	env.createSQLiteConnection(t, other.ID, "theirs", "c.db")

	existed, err := env.registry.Deactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	conns, err := env.registry.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "b", conns[0].Name)
}

func TestRegistry_DeactivateIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	conn := env.createSQLiteConnection(t, user.ID, "a", "a.db")

	for i := 0; i < 2; i++ {
		existed, err := env.registry.Deactivate(ctx, conn.ID)
		require.NoError(t, err, "call %d", i+1)
		assert.True(t, existed, "call %d", i+1)

		got, err := env.registry.Get(ctx, conn.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	}

	existed, err := env.registry.Deactivate(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestRegistry_UpdateReencryptsPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	conn := env.createSQLiteConnection(t, user.ID, "a", "a.db")

	newName := "renamed"
	newPassword := "rotated-secret"
	updated, err := env.registry.Update(ctx, conn.ID, UpdateConnectionInput{
		Name:     &newName,
		Password: &newPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	plain, err := env.vault.Decrypt(updated.PasswordEnc)
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret", plain)
}

func TestRegistry_UpdateMissingIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	name := "x"
	_, err := env.registry.Update(context.Background(), "no-such-id", UpdateConnectionInput{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistry_Authorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	intruder := env.createUser(t, "intruder@example.com")
	conn := env.createSQLiteConnection(t, owner.ID, "a", "a.db")

	assert.NoError(t, env.registry.Authorize(ctx, owner.ID, conn.ID))

	// Foreign connection: denied, not "not found".
	err := env.registry.Authorize(ctx, intruder.ID, conn.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	// Missing connection: not found.
	err = env.registry.Authorize(ctx, owner.ID, "no-such-id")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Inactive connection is unusable even for the owner.
	_, err = env.registry.Deactivate(ctx, conn.ID)
	require.NoError(t, err)
	err = env.registry.Authorize(ctx, owner.ID, conn.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied)
}
