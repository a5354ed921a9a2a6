package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - referenced connection or log entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied - caller is not the owner of an existing, active
	// connection. Deliberately distinct from ErrNotFound.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnsupportedDialect - dialect tag outside the closed enumeration.
	// Unreachable past registry validation; the broker checks anyway.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")

	// ErrDecryption - stored secret cannot be decrypted under the current
	// master key. Configuration-level, not retryable.
	ErrDecryption = errors.New("decryption failed")
)

// SchemaDetectionError wraps any reflection failure during introspection.
// Partial schemas are never returned alongside it.
type SchemaDetectionError struct {
	Dialect string
	Err     error
}

func (e *SchemaDetectionError) Error() string {
	return fmt.Sprintf("schema detection failed (%s): %v", e.Dialect, e.Err)
}

func (e *SchemaDetectionError) Unwrap() error {
	return e.Err
}
