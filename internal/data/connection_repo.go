package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenantql/internal/core"
)

type ConnectionRepo struct {
	db *sql.DB
}

func NewConnectionRepo(db *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

const connectionColumns = `id, user_id, name, database_type, host, port, database_name, username,
	password_enc, connection_string_enc, schema_json, is_active, last_connected_at, created_at, updated_at`

func (r *ConnectionRepo) Create(ctx context.Context, c *core.Connection) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO connections
		(id, user_id, name, database_type, host, port, database_name, username,
		 password_enc, connection_string_enc, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Dialect, c.Host, c.Port, c.DatabaseName, c.Username,
		c.PasswordEnc, c.ConnectionStringEnc, boolToInt(c.IsActive), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *ConnectionRepo) GetByID(ctx context.Context, id string) (*core.Connection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return c, err
}

func (r *ConnectionRepo) ListForUser(ctx context.Context, userID string) ([]core.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections
		WHERE user_id = ? AND is_active = 1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []core.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, *c)
	}
	return connections, rows.Err()
}

func (r *ConnectionRepo) Update(ctx context.Context, c *core.Connection) error {
	res, err := r.db.ExecContext(ctx, `UPDATE connections SET
		name=?, database_type=?, host=?, port=?, database_name=?, username=?,
		password_enc=?, connection_string_enc=?, is_active=?, updated_at=?
		WHERE id=?`,
		c.Name, c.Dialect, c.Host, c.Port, c.DatabaseName, c.Username,
		c.PasswordEnc, c.ConnectionStringEnc, boolToInt(c.IsActive), time.Now().UTC(), c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

// Deactivate soft-deletes the record. Idempotent: deactivating an already
// inactive record succeeds. Returns whether a record existed at all.
func (r *ConnectionRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE connections SET is_active=0, updated_at=? WHERE id=?`,
		time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ConnectionRepo) SetSchemaJSON(ctx context.Context, id string, schemaJSON string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE connections SET schema_json=?, updated_at=? WHERE id=?`,
		schemaJSON, time.Now().UTC(), id)
	return err
}

func (r *ConnectionRepo) TouchLastConnected(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE connections SET last_connected_at=? WHERE id=?`,
		time.Now().UTC(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*core.Connection, error) {
	var c core.Connection
	var isActive int
	var host, dbName, username, passwordEnc, connStrEnc, schemaJSON sql.NullString
	var port sql.NullInt64
	var lastConnected sql.NullTime

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Dialect, &host, &port, &dbName, &username,
		&passwordEnc, &connStrEnc, &schemaJSON, &isActive, &lastConnected, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Host = host.String
	c.Port = int(port.Int64)
	c.DatabaseName = dbName.String
	c.Username = username.String
	c.PasswordEnc = passwordEnc.String
	c.ConnectionStringEnc = connStrEnc.String
	c.SchemaJSON = schemaJSON.String
	c.IsActive = isActive == 1
	if lastConnected.Valid {
		t := lastConnected.Time
		c.LastConnectedAt = &t
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
