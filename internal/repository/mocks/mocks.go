package mocks

import (
	"context"
	"time"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/stretchr/testify/mock"
)

// APIKeyStore is a mock for identity.APIKeyStore.
type APIKeyStore struct {
	mock.Mock
}

func (m *APIKeyStore) LookupAPIKey(ctx context.Context, hash string) (*identity.APIKey, error) {
	args := m.Called(ctx, hash)
	if key, ok := args.Get(0).(*identity.APIKey); ok {
		return key, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *APIKeyStore) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	args := m.Called(ctx, hash, at)
	return args.Error(0)
}

// FixtureStore is a mock for devapi.Store.
type FixtureStore struct {
	mock.Mock
}

func (m *FixtureStore) ListFixtures(ctx context.Context, tenantID, collection string) ([]devapi.Fixture, error) {
	args := m.Called(ctx, tenantID, collection)
	if list, ok := args.Get(0).([]devapi.Fixture); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FixtureStore) GetFixture(ctx context.Context, tenantID, collection, key string) (*devapi.Fixture, error) {
	args := m.Called(ctx, tenantID, collection, key)
	if f, ok := args.Get(0).(*devapi.Fixture); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FixtureStore) PutFixtures(ctx context.Context, tenantID, collection string, items []devapi.Fixture) (int, error) {
	args := m.Called(ctx, tenantID, collection, items)
	return args.Int(0), args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.Entry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
