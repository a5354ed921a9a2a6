package data

import (
	"context"
	"database/sql"

	"tenantql/internal/core"
)

// QueryLogRepo is append-only: rows are inserted once and never updated.
type QueryLogRepo struct {
	db *sql.DB
}

func NewQueryLogRepo(db *sql.DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

func (r *QueryLogRepo) Create(ctx context.Context, e *core.QueryLogEntry) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO query_log
		(id, user_id, connection_id, query_type, natural_language_query, sql_query,
		 llm_response, confidence_score, execution_time_ms, row_count, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ConnectionID, e.QueryKind, e.Prompt, e.SQLText,
		e.LLMResponse, e.Confidence, e.ExecutionTimeMs, e.RowCount, e.Status, e.ErrorMessage, e.CreatedAt)
	return err
}

func (r *QueryLogRepo) ListForUser(ctx context.Context, userID string, limit int) ([]core.QueryLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, connection_id, query_type,
		natural_language_query, sql_query, llm_response, confidence_score,
		execution_time_ms, row_count, status, error_message, created_at
		FROM query_log WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []core.QueryLogEntry
	for rows.Next() {
		var e core.QueryLogEntry
		var prompt, sqlText, llmResp, errMsg sql.NullString
		var confidence sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.ConnectionID, &e.QueryKind,
			&prompt, &sqlText, &llmResp, &confidence,
			&e.ExecutionTimeMs, &e.RowCount, &e.Status, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		if prompt.Valid {
			e.Prompt = &prompt.String
		}
		if sqlText.Valid {
			e.SQLText = &sqlText.String
		}
		if llmResp.Valid {
			e.LLMResponse = &llmResp.String
		}
		if confidence.Valid {
			c := int(confidence.Int64)
			e.Confidence = &c
		}
		if errMsg.Valid {
			e.ErrorMessage = &errMsg.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *QueryLogRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM query_log WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOne removes a single entry, but only if it belongs to userID.
func (r *QueryLogRepo) DeleteOne(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM query_log WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
