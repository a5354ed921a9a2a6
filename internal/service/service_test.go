package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tenantql/internal/core"
	"tenantql/internal/data"
)

// --- shared helpers ---

type testEnv struct {
	db       *sql.DB
	userRepo *data.UserRepo
	connRepo *data.ConnectionRepo
	logRepo  *data.QueryLogRepo
	vault    *Vault
	registry *ConnectionRegistry
	broker   *ConnectionBroker
	executor *TenantQueryExecutor
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := data.InitDB(context.Background(), filepath.Join(dir, "platform.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vault, err := NewVault(testMasterKey)
	require.NoError(t, err)

	connRepo := data.NewConnectionRepo(db)
	logRepo := data.NewQueryLogRepo(db)
	registry := NewConnectionRegistry(connRepo, vault)
	broker := NewConnectionBroker(registry, vault)

	return &testEnv{
		db:       db,
		userRepo: data.NewUserRepo(db),
		connRepo: connRepo,
		logRepo:  logRepo,
		vault:    vault,
		registry: registry,
		broker:   broker,
		executor: NewTenantQueryExecutor(broker, registry, logRepo, 30*time.Second),
		dir:      dir,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *core.User {
	t.Helper()
	now := time.Now().UTC()
	user := &core.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.userRepo.Create(context.Background(), user))
	return user
}

// createSQLiteConnection registers a sqlite connection pointing at a file
// inside the test's temp dir.
func (e *testEnv) createSQLiteConnection(t *testing.T, userID, name, file string) *core.Connection {
	t.Helper()
	conn, err := e.registry.Create(context.Background(), userID, CreateConnectionInput{
		Name:         name,
		Dialect:      core.DialectSQLite,
		DatabaseName: filepath.Join(e.dir, file),
	})
	require.NoError(t, err)
	return conn
}

// seedClientDB creates a small schema with data in a standalone sqlite file,
// playing the role of an external client database.
func seedClientDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE customers (
		id INTEGER NOT NULL PRIMARY KEY,
		email TEXT NOT NULL,
		nickname TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO customers (id, email, nickname) VALUES (1, 'a@b.c', NULL), (2, 'd@e.f', 'dee')`)
	require.NoError(t, err)
}
