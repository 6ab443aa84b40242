package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestFixtureRepository_PutAndList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewFixtureRepository(db)
	ctx := context.Background()

	n, err := repo.PutFixtures(ctx, "acme", "visits", []devapi.Fixture{
		{ID: "2", Payload: map[string]any{"id": "2", "name": "B"}},
		{ID: "1", Payload: map[string]any{"id": "1", "name": "A", "guests": 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	list, err := repo.ListFixtures(ctx, "acme", "visits")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2", list[0].ID)
	require.Equal(t, "1", list[1].ID)
	require.Equal(t, json.Number("3"), list[1].Payload["guests"])

	// Upsert keeps position and replaces the payload.
	_, err = repo.PutFixtures(ctx, "acme", "visits", []devapi.Fixture{
		{ID: "2", Payload: map[string]any{"id": "2", "name": "B2"}},
		{ID: "3", Payload: map[string]any{"id": "3"}},
	})
	require.NoError(t, err)
	list, err = repo.ListFixtures(ctx, "acme", "visits")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "B2", list[0].Payload["name"])
	require.Equal(t, "3", list[2].ID)
}

func TestFixtureRepository_TenantIsolation(t *testing.T) {
	db := NewTestDB(t)
	repo := NewFixtureRepository(db)
	ctx := context.Background()

	_, err := repo.PutFixtures(ctx, "acme", "cases", []devapi.Fixture{{ID: "c1", Number: "EC-1", Payload: map[string]any{}}})
	require.NoError(t, err)

	list, err := repo.ListFixtures(ctx, "globex", "cases")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = repo.GetFixture(ctx, "globex", "cases", "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFixtureRepository_GetByIDOrNumber(t *testing.T) {
	db := NewTestDB(t)
	repo := NewFixtureRepository(db)
	ctx := context.Background()

	_, err := repo.PutFixtures(ctx, "acme", "cases", []devapi.Fixture{
		{ID: "c1", Number: "EC-2024-001", Payload: map[string]any{"id": "c1"}},
		{ID: "c2", Number: "", Payload: map[string]any{"id": "c2"}},
	})
	require.NoError(t, err)

	f, err := repo.GetFixture(ctx, "acme", "cases", "c1")
	require.NoError(t, err)
	require.Equal(t, "EC-2024-001", f.Number)

	f, err = repo.GetFixture(ctx, "acme", "cases", "EC-2024-001")
	require.NoError(t, err)
	require.Equal(t, "c1", f.ID)

	_, err = repo.GetFixture(ctx, "acme", "cases", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFixtureRepository_RequiresID(t *testing.T) {
	db := NewTestDB(t)
	repo := NewFixtureRepository(db)

	_, err := repo.PutFixtures(context.Background(), "acme", "x", []devapi.Fixture{{Payload: map[string]any{}}})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}
