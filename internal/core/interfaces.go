package core

import "context"

// UserRepository defines storage operations for platform users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	Count(ctx context.Context) (int, error)
}

// ConnectionRepository defines storage operations for connection records.
// Ownership checks live in the service layer, not here.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *Connection) error
	GetByID(ctx context.Context, id string) (*Connection, error)
	ListForUser(ctx context.Context, userID string) ([]Connection, error)
	Update(ctx context.Context, conn *Connection) error
	Deactivate(ctx context.Context, id string) (bool, error)
	SetSchemaJSON(ctx context.Context, id string, schemaJSON string) error
	TouchLastConnected(ctx context.Context, id string) error
}

// QueryLogRepository defines the append-only query audit log.
type QueryLogRepository interface {
	Create(ctx context.Context, entry *QueryLogEntry) error
	ListForUser(ctx context.Context, userID string, limit int) ([]QueryLogEntry, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteOne(ctx context.Context, id, userID string) (bool, error)
}
