// Package testserver starts a complete deskview stack for end-to-end tests:
// the fixture backend and the HTTP server with MCP mounted.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/mcp"
	"github.com/rpggio/deskview/internal/source"
	"github.com/rpggio/deskview/internal/sqlite"
	"github.com/rpggio/deskview/internal/transport"
	"github.com/stretchr/testify/require"
)

// PageSize is the default page size of the test server.
const PageSize = 25

type TestServer struct {
	Server  *httptest.Server
	Backend *httptest.Server
	DB      *sqlite.DB
	Screens *screen.Service
	Cases   *caselookup.Service
	keys    *sqlite.APIKeyRepository
}

// New starts the stack with the built-in catalog and demo fixtures.
func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	fixtures := sqlite.NewFixtureRepository(db)
	seed, err := devapi.LoadSeed("")
	require.NoError(t, err)
	_, err = seed.Apply(context.Background(), fixtures)
	require.NoError(t, err)
	backend := httptest.NewServer(devapi.NewHandler(fixtures, devapi.DefaultOptions()))

	catalog, err := screen.LoadCatalog("")
	require.NoError(t, err)
	client, err := source.NewClient(source.Options{BaseURL: backend.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	activityLog := activity.NewService(sqlite.NewActivityRepository(db), nil)
	screens := screen.NewService(screen.NewDispatch(catalog, client, nil), client, nil, screen.Options{
		IdleTimeout: time.Minute,
		Activity:    activityLog,
	})
	cases := caselookup.NewService(client, caselookup.Config{
		Path:        catalog.CaseLookup.Path,
		Envelope:    catalog.CaseLookup.Envelope,
		NumberField: catalog.CaseLookup.NumberField,
		Roles:       catalog.CaseLookup.Roles,
		Activity:    activityLog,
	}, nil)

	keys := sqlite.NewAPIKeyRepository(db)
	resolver := identity.NewAPIKeyResolver(keys, nil)
	mcpServer := mcp.NewServer(mcp.Config{
		Screens:  screens,
		Cases:    cases,
		Resolver: resolver,
		PageSize: PageSize,
		Version:  "test",
	})
	server := httptest.NewServer(transport.NewServer(transport.Services{
		Screens:  screens,
		Cases:    cases,
		Activity: activityLog,
	}, transport.Options{
		Resolver: resolver,
		PageSize: PageSize,
		MCP:      mcp.NewHTTPHandler(mcpServer, time.Minute),
	}))

	t.Cleanup(func() {
		server.Close()
		screens.Shutdown()
		backend.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:  server,
		Backend: backend,
		DB:      db,
		Screens: screens,
		Cases:   cases,
		keys:    keys,
	}
}

// AddAPIKey registers token for the given tenant, user and role.
func (ts *TestServer) AddAPIKey(token, tenantID, userID string, role identity.Role) error {
	return ts.keys.Create(context.Background(), &identity.APIKey{
		Hash:     identity.HashToken(token),
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
	})
}
