package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/repository"
)

// FixtureRepository implements devapi.Store for SQLite
type FixtureRepository struct {
	db *DB
}

// NewFixtureRepository creates a new FixtureRepository
func NewFixtureRepository(db *DB) *FixtureRepository {
	return &FixtureRepository{db: db}
}

// ListFixtures returns a collection in insertion order
func (r *FixtureRepository) ListFixtures(ctx context.Context, tenantID, collection string) ([]devapi.Fixture, error) {
	query := `
		SELECT tenant_id, collection, id, number, payload, created_at
		FROM fixture_records
		WHERE tenant_id = ? AND collection = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	out := []devapi.Fixture{}
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	return out, nil
}

// GetFixture finds a record by id, falling back to its number
func (r *FixtureRepository) GetFixture(ctx context.Context, tenantID, collection, key string) (*devapi.Fixture, error) {
	query := `
		SELECT tenant_id, collection, id, number, payload, created_at
		FROM fixture_records
		WHERE tenant_id = ? AND collection = ? AND (id = ? OR (number <> '' AND number = ?))
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, position ASC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, tenantID, collection, key, key, key)
	f, err := scanFixture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// PutFixtures upserts items by id. New ids are appended to the collection
func (r *FixtureRepository) PutFixtures(ctx context.Context, tenantID, collection string, items []devapi.Fixture) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO fixture_records (tenant_id, collection, id, number, payload, position, created_at)
		VALUES (?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM fixture_records WHERE tenant_id = ? AND collection = ?),
			?)
		ON CONFLICT (tenant_id, collection, id) DO UPDATE SET
			number = excluded.number,
			payload = excluded.payload
	`

	now := time.Now().UTC()
	for _, item := range items {
		if item.ID == "" {
			return 0, fmt.Errorf("%w: fixture id is required", repository.ErrInvalidInput)
		}
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return 0, fmt.Errorf("failed to encode fixture %s: %w", item.ID, err)
		}
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, query,
			tenantID, collection, item.ID, item.Number, string(payload),
			tenantID, collection,
			createdAt,
		); err != nil {
			return 0, fmt.Errorf("failed to put fixture %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fixtures: %w", err)
	}
	return len(items), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFixture(row rowScanner) (*devapi.Fixture, error) {
	var f devapi.Fixture
	var payload string
	if err := row.Scan(&f.TenantID, &f.Collection, &f.ID, &f.Number, &payload, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan fixture: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&f.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", f.ID, err)
	}
	return &f, nil
}
