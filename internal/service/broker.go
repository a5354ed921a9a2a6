package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"tenantql/internal/core"
	"tenantql/internal/logger"
)

// ConnectionBroker builds live handles to external client databases.
// GetClientConnection is the single sanctioned entry point: every component
// that needs to reach a client database goes through it, which is what makes
// the access gate and the audit trail unavoidable.
//
// Handles are opened per call and closed by the caller; there is no pooling.
// That trades latency for isolation simplicity: no credential ever outlives
// the operation it was decrypted for.
type ConnectionBroker struct {
	registry *ConnectionRegistry
	vault    *Vault
}

func NewConnectionBroker(registry *ConnectionRegistry, vault *Vault) *ConnectionBroker {
	return &ConnectionBroker{registry: registry, vault: vault}
}

// buildDSN maps a connection record plus its plaintext password onto a
// driver name and DSN. For sqlite the database name is the file path and
// the network fields are ignored.
func buildDSN(c *core.Connection, password string) (driver, dsn string, err error) {
	switch c.Dialect {
	case core.DialectPostgres:
		u := &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.DatabaseName,
			RawQuery: "sslmode=disable",
		}
		return "postgres", u.String(), nil
	case core.DialectMySQL:
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.Username, password, c.Host, c.Port, c.DatabaseName), nil
	case core.DialectSQLite:
		return "sqlite", c.DatabaseName, nil
	default:
		// Unreachable past registry validation, checked anyway.
		return "", "", fmt.Errorf("%w: %q", core.ErrUnsupportedDialect, c.Dialect)
	}
}

// Open builds a handle from a record and its decrypted password. The caller
// owns the handle and must Close it on every exit path.
func (b *ConnectionBroker) Open(record *core.Connection, password string) (*sql.DB, error) {
	driver, dsn, err := buildDSN(record, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", record.Dialect, err)
	}
	return db, nil
}

// GetClientConnection composes gate authorization, registry lookup, vault
// decryption and Open. Authorization failures short-circuit before any
// external I/O.
func (b *ConnectionBroker) GetClientConnection(ctx context.Context, userID, connectionID string) (*sql.DB, *core.Connection, error) {
	if err := b.registry.Authorize(ctx, userID, connectionID); err != nil {
		return nil, nil, err
	}

	record, err := b.registry.Get(ctx, connectionID)
	if err != nil {
		return nil, nil, err
	}

	password, err := b.vault.Decrypt(record.PasswordEnc)
	if err != nil {
		return nil, nil, err
	}

	db, err := b.Open(record, password)
	if err != nil {
		return nil, nil, err
	}
	return db, record, nil
}

// TestConnection opens the target through the sanctioned path and runs
// SELECT 1. Success stamps last_connected_at on the record.
func (b *ConnectionBroker) TestConnection(ctx context.Context, userID, connectionID string) *core.TestResult {
	db, record, err := b.GetClientConnection(ctx, userID, connectionID)
	if err != nil {
		return &core.TestResult{Success: false, Error: err.Error()}
	}
	defer db.Close()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return &core.TestResult{Success: false, Error: err.Error()}
	}

	if err := b.registry.TouchLastConnected(ctx, record.ID); err != nil {
		logger.L.Warnw("failed to update last_connected_at", "connection_id", record.ID, "err", err)
	}

	return &core.TestResult{Success: true, Message: "Connection successful"}
}
