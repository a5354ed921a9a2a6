package data

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tenantql/internal/core"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(context.Background(), filepath.Join(t.TempDir(), "platform.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, email string) *core.User {
	t.Helper()
	now := time.Now().UTC()
	user := &core.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), user))
	return user
}

func seedConnection(t *testing.T, db *sql.DB, userID, name string) *core.Connection {
	t.Helper()
	now := time.Now().UTC()
	conn := &core.Connection{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                name,
		Dialect:             core.DialectSQLite,
		DatabaseName:        "client.db",
		PasswordEnc:         "enc",
		ConnectionStringEnc: "enc",
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, NewConnectionRepo(db).Create(context.Background(), conn))
	return conn
}
