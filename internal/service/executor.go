package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenantql/internal/core"
	"tenantql/internal/logger"
)

// TenantQueryExecutor runs user-supplied SQL against tenant-scoped client
// databases. Statements pass through verbatim: authorization gates which
// connection a user may reach, not which statements run on it. That is the
// trust boundary, and it is intentional.
type TenantQueryExecutor struct {
	broker       *ConnectionBroker
	registry     *ConnectionRegistry
	logRepo      core.QueryLogRepository
	introspector *SchemaIntrospector
	timeout      time.Duration
}

func NewTenantQueryExecutor(broker *ConnectionBroker, registry *ConnectionRegistry, logRepo core.QueryLogRepository, timeout time.Duration) *TenantQueryExecutor {
	return &TenantQueryExecutor{
		broker:       broker,
		registry:     registry,
		logRepo:      logRepo,
		introspector: NewSchemaIntrospector(),
		timeout:      timeout,
	}
}

// Execute runs sqlText on the user's connection and always returns a
// structured result; remote failures never propagate as errors. Every
// attempt that reaches the gate on an existing connection is logged
// exactly once before the caller sees the result.
func (e *TenantQueryExecutor) Execute(ctx context.Context, userID, connectionID, sqlText string) *core.QueryResult {
	result, loggable, timedOut := e.run(ctx, userID, connectionID, sqlText)
	if loggable {
		e.logAttempt(ctx, userID, connectionID, sqlText, result, timedOut)
	}
	return result
}

// run performs gate, open, execute and fetch. The first bool reports whether
// the attempt can be logged: a connection that does not exist cannot be
// referenced by a log row at all. The second reports whether the query was
// killed by the execution deadline; it must be decided here, while the
// timeout context is still alive.
func (e *TenantQueryExecutor) run(ctx context.Context, userID, connectionID, sqlText string) (*core.QueryResult, bool, bool) {
	db, _, err := e.broker.GetClientConnection(ctx, userID, connectionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return &core.QueryResult{Success: false, Message: "Connection not found"}, false, false
		}
		if errors.Is(err, core.ErrAccessDenied) {
			return &core.QueryResult{Success: false, Message: "Access denied: user cannot use this database connection"}, true, false
		}
		return &core.QueryResult{Success: false, Message: err.Error()}, true, false
	}
	defer db.Close()

	ctxTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The wall clock covers open through fetch; gate and decryption time
	// stay out of it, so denied attempts report zero.
	start := time.Now()
	result, err := e.query(ctxTimeout, db, sqlText)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		timedOut := errors.Is(ctxTimeout.Err(), context.DeadlineExceeded)
		return &core.QueryResult{Success: false, Message: err.Error(), ExecutionTimeMs: elapsed}, true, timedOut
	}
	result.ExecutionTimeMs = elapsed
	return result, true, false
}

// query executes the statement and eagerly materializes all rows into memory.
func (e *TenantQueryExecutor) query(ctx context.Context, db *sql.DB, sqlText string) (*core.QueryResult, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		data = append(data, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &core.QueryResult{
		Success:  true,
		Data:     data,
		Columns:  columns,
		RowCount: len(data),
	}, nil
}

// logAttempt writes the audit entry. Best-effort: a logging failure warns
// and never changes the user-visible result.
func (e *TenantQueryExecutor) logAttempt(ctx context.Context, userID, connectionID, sqlText string, result *core.QueryResult, timedOut bool) {
	status := core.StatusSuccess
	var errMsg *string
	if !result.Success {
		status = core.StatusError
		if timedOut {
			status = core.StatusTimeout
		}
		msg := result.Message
		errMsg = &msg
	}

	entry := &core.QueryLogEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		ConnectionID:    connectionID,
		QueryKind:       core.QueryKindSQL,
		SQLText:         &sqlText,
		ExecutionTimeMs: result.ExecutionTimeMs,
		RowCount:        result.RowCount,
		Status:          status,
		ErrorMessage:    errMsg,
		CreatedAt:       time.Now().UTC(),
	}

	if err := e.logRepo.Create(ctx, entry); err != nil {
		logger.L.Warnw("failed to write query log entry", "user_id", userID, "connection_id", connectionID, "err", err)
	}
}

// SampleData fetches up to limit rows from a table. The table name is
// interpolated directly: it is expected to come from a prior DetectSchema
// call, never from unvalidated external input.
func (e *TenantQueryExecutor) SampleData(ctx context.Context, userID, connectionID, table string, limit int) *core.QueryResult {
	if limit <= 0 {
		limit = 5
	}
	return e.Execute(ctx, userID, connectionID, fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit))
}

// DetectSchema reflects the client database through the sanctioned broker
// path and caches the serialized result onto the connection record.
// Unlike Execute, schema failures are allowed to surface to the caller.
func (e *TenantQueryExecutor) DetectSchema(ctx context.Context, userID, connectionID string) (*core.NormalizedSchema, error) {
	db, record, err := e.broker.GetClientConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctxTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	schema, err := e.introspector.DetectSchema(ctxTimeout, db, record.Dialect)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(schema); err == nil {
		if err := e.registry.CacheSchema(ctx, record.ID, string(raw)); err != nil {
			logger.L.Warnw("failed to cache schema", "connection_id", record.ID, "err", err)
		}
	}
	return schema, nil
}
