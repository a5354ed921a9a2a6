package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tenantql/internal/core"
)

// ConnectionRegistry owns connection record CRUD and the access control gate.
// It never hands out plaintext secrets; decryption happens in the broker.
type ConnectionRegistry struct {
	repo     core.ConnectionRepository
	vault    *Vault
	validate *validator.Validate
}

func NewConnectionRegistry(repo core.ConnectionRepository, vault *Vault) *ConnectionRegistry {
	return &ConnectionRegistry{
		repo:     repo,
		vault:    vault,
		validate: validator.New(),
	}
}

type CreateConnectionInput struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Dialect      string `json:"database_type" validate:"required,oneof=postgresql mysql sqlite"`
	Host         string `json:"host" validate:"omitempty,max=255"`
	Port         int    `json:"port" validate:"omitempty,min=1,max=65535"`
	DatabaseName string `json:"database_name" validate:"omitempty,max=255"`
	Username     string `json:"username" validate:"omitempty,max=255"`
	Password     string `json:"password"`
}

type UpdateConnectionInput struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Dialect      *string `json:"database_type" validate:"omitempty,oneof=postgresql mysql sqlite"`
	Host         *string `json:"host"`
	Port         *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	DatabaseName *string `json:"database_name"`
	Username     *string `json:"username"`
	Password     *string `json:"password"`
	IsActive     *bool   `json:"is_active"`
}

// Create validates input, encrypts secrets and persists a new record.
// The plaintext password is never stored.
func (s *ConnectionRegistry) Create(ctx context.Context, userID string, in CreateConnectionInput) (*core.Connection, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid connection: %w", err)
	}

	passwordEnc, err := s.vault.Encrypt(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conn := &core.Connection{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Dialect:      in.Dialect,
		Host:         in.Host,
		Port:         in.Port,
		DatabaseName: in.DatabaseName,
		Username:     in.Username,
		PasswordEnc:  passwordEnc,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, dsn, err := buildDSN(conn, in.Password)
	if err != nil {
		return nil, err
	}
	if conn.ConnectionStringEnc, err = s.vault.Encrypt(dsn); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *ConnectionRegistry) Get(ctx context.Context, id string) (*core.Connection, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForUser returns only active records.
func (s *ConnectionRegistry) ListForUser(ctx context.Context, userID string) ([]core.Connection, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Update applies the supplied fields. A new password re-encrypts both the
// password and the derived connection string. Ownership is not checked here;
// callers go through Authorize first.
func (s *ConnectionRegistry) Update(ctx context.Context, id string, in UpdateConnectionInput) (*core.Connection, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid connection: %w", err)
	}

	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		conn.Name = *in.Name
	}
	if in.Dialect != nil {
		conn.Dialect = *in.Dialect
	}
	if in.Host != nil {
		conn.Host = *in.Host
	}
	if in.Port != nil {
		conn.Port = *in.Port
	}
	if in.DatabaseName != nil {
		conn.DatabaseName = *in.DatabaseName
	}
	if in.Username != nil {
		conn.Username = *in.Username
	}
	if in.IsActive != nil {
		conn.IsActive = *in.IsActive
	}

	if in.Password != nil {
		if conn.PasswordEnc, err = s.vault.Encrypt(*in.Password); err != nil {
			return nil, err
		}
		_, dsn, err := buildDSN(conn, *in.Password)
		if err != nil {
			return nil, err
		}
		if conn.ConnectionStringEnc, err = s.vault.Encrypt(dsn); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Deactivate soft-deletes: the record stays for query-log linkage.
func (s *ConnectionRegistry) Deactivate(ctx context.Context, id string) (bool, error) {
	return s.repo.Deactivate(ctx, id)
}

// Authorize is the access control gate: nil iff the record exists, is active
// and belongs to userID. Every remote operation calls this first. A missing
// record is ErrNotFound; an existing record that the caller may not use is
// ErrAccessDenied, kept distinct on purpose.
func (s *ConnectionRegistry) Authorize(ctx context.Context, userID, connectionID string) error {
	conn, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID || !conn.IsActive {
		return core.ErrAccessDenied
	}
	return nil
}

// CacheSchema persists the normalized schema onto the record. Advisory:
// concurrent introspections race last-writer-wins.
func (s *ConnectionRegistry) CacheSchema(ctx context.Context, id string, schemaJSON string) error {
	return s.repo.SetSchemaJSON(ctx, id, schemaJSON)
}

func (s *ConnectionRegistry) TouchLastConnected(ctx context.Context, id string) error {
	return s.repo.TouchLastConnected(ctx, id)
}
