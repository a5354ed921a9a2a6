package service

import (
	"context"
	"database/sql"
	"fmt"

	"tenantql/internal/core"
)

// SchemaIntrospector reflects tables and columns from a live client database.
// Each dialect exposes metadata differently; the output shape is identical
// regardless of source, which is the whole point of this component.
type SchemaIntrospector struct{}

func NewSchemaIntrospector() *SchemaIntrospector {
	return &SchemaIntrospector{}
}

// DetectSchema returns the normalized schema or a SchemaDetectionError.
// It never returns a partial schema: the first reflection failure aborts.
func (si *SchemaIntrospector) DetectSchema(ctx context.Context, db *sql.DB, dialect string) (*core.NormalizedSchema, error) {
	tables, err := si.listTables(ctx, db, dialect)
	if err != nil {
		return nil, &core.SchemaDetectionError{Dialect: dialect, Err: err}
	}

	schema := &core.NormalizedSchema{Tables: []core.TableSchema{}}
	for _, name := range tables {
		columns, err := si.listColumns(ctx, db, dialect, name)
		if err != nil {
			return nil, &core.SchemaDetectionError{Dialect: dialect, Err: err}
		}
		schema.Tables = append(schema.Tables, core.TableSchema{Name: name, Columns: columns})
	}
	return schema, nil
}

func (si *SchemaIntrospector) listTables(ctx context.Context, db *sql.DB, dialect string) ([]string, error) {
	var query string
	switch dialect {
	case core.DialectPostgres:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	case core.DialectMySQL:
		query = `SHOW TABLES`
	case core.DialectSQLite:
		query = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedDialect, dialect)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (si *SchemaIntrospector) listColumns(ctx context.Context, db *sql.DB, dialect, table string) ([]core.ColumnSchema, error) {
	switch dialect {
	case core.DialectPostgres:
		return si.postgresColumns(ctx, db, table)
	case core.DialectMySQL:
		return si.mysqlColumns(ctx, db, table)
	case core.DialectSQLite:
		return si.sqliteColumns(ctx, db, table)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedDialect, dialect)
	}
}

func (si *SchemaIntrospector) postgresColumns(ctx context.Context, db *sql.DB, table string) ([]core.ColumnSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []core.ColumnSchema
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, err
		}
		columns = append(columns, core.ColumnSchema{Name: name, Type: typ, Nullable: nullable == "YES"})
	}
	return columns, rows.Err()
}

func (si *SchemaIntrospector) mysqlColumns(ctx context.Context, db *sql.DB, table string) ([]core.ColumnSchema, error) {
	// DESCRIBE takes no placeholders; table names come from SHOW TABLES above.
	rows, err := db.QueryContext(ctx, "DESCRIBE "+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []core.ColumnSchema
	for rows.Next() {
		var field, typ, null sql.NullString
		var key, def, extra sql.NullString
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, err
		}
		columns = append(columns, core.ColumnSchema{Name: field.String, Type: typ.String, Nullable: null.String == "YES"})
	}
	return columns, rows.Err()
}

func (si *SchemaIntrospector) sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]core.ColumnSchema, error) {
	// PRAGMA takes no placeholders; table names come from sqlite_master above.
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []core.ColumnSchema
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, core.ColumnSchema{Name: name, Type: typ, Nullable: notNull == 0})
	}
	return columns, rows.Err()
}
