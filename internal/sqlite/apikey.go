package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/repository"
)

// APIKeyRepository implements identity.APIKeyStore for SQLite
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores a hashed key
func (r *APIKeyRepository) Create(ctx context.Context, key *identity.APIKey) error {
	query := `
		INSERT INTO api_keys (key_hash, tenant_id, user_id, role, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		key.Hash,
		key.TenantID,
		key.UserID,
		string(key.Role),
		key.Description,
		createdAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

// LookupAPIKey retrieves a key by hash
func (r *APIKeyRepository) LookupAPIKey(ctx context.Context, hash string) (*identity.APIKey, error) {
	query := `
		SELECT key_hash, tenant_id, user_id, role, description, created_at, last_used
		FROM api_keys
		WHERE key_hash = ?
	`

	var key identity.APIKey
	var role string
	var lastUsed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&key.Hash,
		&key.TenantID,
		&key.UserID,
		&role,
		&key.Description,
		&key.CreatedAt,
		&lastUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	key.Role = identity.Role(role)
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsed = &t
	}
	return &key, nil
}

// TouchAPIKey records the last time a key was used
func (r *APIKeyRepository) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, at, hash)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Revoke deletes a key
func (r *APIKeyRepository) Revoke(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE key_hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
