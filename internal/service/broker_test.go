package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantql/internal/core"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name       string
		conn       *core.Connection
		password   string
		wantDriver string
		wantDSN    string
	}{
		{
			name: "postgresql",
			conn: &core.Connection{
				Dialect: core.DialectPostgres, Username: "u", Host: "h", Port: 5432, DatabaseName: "d",
			},
			password:   "p",
			wantDriver: "postgres",
			wantDSN:    "postgres://u:p@h:5432/d?sslmode=disable",
		},
		{
			name: "mysql",
			conn: &core.Connection{
				Dialect: core.DialectMySQL, Username: "u", Host: "h", Port: 3306, DatabaseName: "d",
			},
			password:   "p",
			wantDriver: "mysql",
			wantDSN:    "u:p@tcp(h:3306)/d",
		},
		{
			name:       "sqlite uses database name as path",
			conn:       &core.Connection{Dialect: core.DialectSQLite, DatabaseName: "some/dir/test.db"},
			wantDriver: "sqlite",
			wantDSN:    "some/dir/test.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := buildDSN(tt.conn, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}

func TestBuildDSN_UnsupportedDialect(t *testing.T) {
	_, _, err := buildDSN(&core.Connection{Dialect: "mssql"}, "p")
	assert.ErrorIs(t, err, core.ErrUnsupportedDialect)
}

func TestBroker_SQLiteRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	conn := env.createSQLiteConnection(t, user.ID, "local", "test.db")

	db, record, err := env.broker.GetClientConnection(ctx, user.ID, conn.ID)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, conn.ID, record.ID)

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestBroker_GetClientConnectionDenied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	intruder := env.createUser(t, "intruder@example.com")
	conn := env.createSQLiteConnection(t, owner.ID, "local", "gated.db")

	_, _, err := env.broker.GetClientConnection(ctx, intruder.ID, conn.ID)
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	// Denial short-circuits before any external I/O: the target file was
	// never touched.
	_, statErr := os.Stat(filepath.Join(env.dir, "gated.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBroker_DecryptionFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	conn := env.createSQLiteConnection(t, user.ID, "local", "test.db")

	// Simulate a master key rotation: stored ciphertext no longer decrypts.
	otherVault, err := NewVault("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	badToken, err := otherVault.Encrypt("old password")
	require.NoError(t, err)

	stored, err := env.registry.Get(ctx, conn.ID)
	require.NoError(t, err)
	stored.PasswordEnc = badToken
	require.NoError(t, env.connRepo.Update(ctx, stored))

	_, _, err = env.broker.GetClientConnection(ctx, user.ID, conn.ID)
	assert.ErrorIs(t, err, core.ErrDecryption)
}

func TestBroker_TestConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "owner@example.com")
	conn := env.createSQLiteConnection(t, user.ID, "local", "test.db")

	result := env.broker.TestConnection(ctx, user.ID, conn.ID)
	assert.True(t, result.Success)
	assert.Equal(t, "Connection successful", result.Message)

	// Success stamps last_connected_at.
	got, err := env.registry.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastConnectedAt)
}

func TestBroker_TestConnectionDenied(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	intruder := env.createUser(t, "intruder@example.com")
	conn := env.createSQLiteConnection(t, owner.ID, "local", "test.db")

	result := env.broker.TestConnection(context.Background(), intruder.ID, conn.ID)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "access denied")
}
