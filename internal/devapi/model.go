// Package devapi is a local stand-in for the backend REST API. It serves
// tenant-scoped fixture collections stored in SQLite.
package devapi

import (
	"context"
	"time"
)

// Fixture is one stored record of a collection.
type Fixture struct {
	TenantID   string
	Collection string
	ID         string
	Number     string
	Payload    map[string]any
	CreatedAt  time.Time
}

// Store persists fixtures.
type Store interface {
	ListFixtures(ctx context.Context, tenantID, collection string) ([]Fixture, error)
	// GetFixture matches key against the id, then the number.
	GetFixture(ctx context.Context, tenantID, collection, key string) (*Fixture, error)
	// PutFixtures upserts items by id and returns how many were written.
	PutFixtures(ctx context.Context, tenantID, collection string, items []Fixture) (int, error)
}
