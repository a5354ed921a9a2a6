package core

import (
	"time"
)

// Supported external database dialects. The set is closed: the registry
// validates against it and the broker re-checks defensively.
const (
	DialectPostgres = "postgresql"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// SupportedDialects lists every dialect the broker can open.
var SupportedDialects = []string{DialectPostgres, DialectMySQL, DialectSQLite}

func IsSupportedDialect(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// Query log entry kinds.
const (
	QueryKindSQL = "sql"
	QueryKindLLM = "llm"
)

// Query log entry statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Connection describes one external database a user has configured.
// Secret fields are stored encrypted and never serialized.
type Connection struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	Name                string     `json:"name"`
	Dialect             string     `json:"database_type"`
	Host                string     `json:"host,omitempty"`
	Port                int        `json:"port,omitempty"`
	DatabaseName        string     `json:"database_name,omitempty"`
	Username            string     `json:"username,omitempty"`
	PasswordEnc         string     `json:"-"`
	ConnectionStringEnc string     `json:"-"`
	SchemaJSON          string     `json:"-"` // cached NormalizedSchema, advisory
	IsActive            bool       `json:"is_active"`
	LastConnectedAt     *time.Time `json:"last_connected_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// QueryLogEntry records one execution attempt against an external database.
// Entries are immutable once written.
type QueryLogEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ConnectionID    string    `json:"connection_id"`
	QueryKind       string    `json:"query_type"`
	Prompt          *string   `json:"natural_language_query,omitempty"`
	SQLText         *string   `json:"sql_query,omitempty"`
	LLMResponse     *string   `json:"llm_response,omitempty"`
	Confidence      *int      `json:"confidence_score,omitempty"` // integer-scaled 0-100
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	RowCount        int       `json:"row_count"`
	Status          string    `json:"status"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NormalizedSchema is the dialect-agnostic schema shape produced by
// introspection. It carries no live handles and serializes directly into the
// connection's schema cache.
type NormalizedSchema struct {
	Tables []TableSchema `json:"tables"`
}

type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// QueryResult is the structured outcome of a tenant query execution.
// Failures are reported in-band via Success/Message, never as errors.
type QueryResult struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data,omitempty"`
	Columns         []string         `json:"columns,omitempty"`
	RowCount        int              `json:"row_count"`
	Message         string           `json:"message,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// TestResult reports the outcome of a connectivity check.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
