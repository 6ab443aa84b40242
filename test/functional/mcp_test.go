package functional_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/testserver"
	"github.com/stretchr/testify/require"
)

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func connect(t *testing.T, ts *testserver.TestServer, token string) *sdkmcp.ClientSession {
	t.Helper()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "functional", Version: "1.0.0"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token}},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

// callTool runs a tool and decodes its structured result into dst.
func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, dst any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if dst != nil {
		require.False(t, res.IsError, "tool error: %s", text(res))
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dst))
	}
	return res
}

func text(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func requestNumbers(v screen.View) []string {
	out := make([]string, 0, len(v.Rows))
	for _, rec := range v.Rows {
		out = append(out, rec.Text("request_number"))
	}
	return out
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t)

	cs := connect(t, ts, "unknown")
	_, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: "list_screens", Arguments: map[string]any{}})
	require.ErrorContains(t, err, "unauthorized")

	require.NoError(t, ts.AddAPIKey("viewer", "acme", "u-rv", identity.RoleReportViewer))
	var home screen.Home
	callTool(t, connect(t, ts, "viewer"), "list_screens", map[string]any{}, &home)
	require.Equal(t, identity.RoleReportViewer, home.Role)
}

func TestFunctional_ScreenWorkflow(t *testing.T) {
	ts := testserver.New(t)
	require.NoError(t, ts.AddAPIKey("coord", "acme", "u-coord", identity.RoleVisitCoordinator))
	cs := connect(t, ts, "coord")

	var home screen.Home
	callTool(t, cs, "list_screens", map[string]any{}, &home)
	require.Equal(t, "visit_requests", home.Home)

	var v screen.View
	callTool(t, cs, "view_screen", map[string]any{
		"screen_id": "visit_requests",
		"filters":   map[string]any{"visited": "Not Visited"},
	}, &v)
	require.Equal(t, []string{"VR-2024-003", "VR-2024-002"}, requestNumbers(v))

	callTool(t, cs, "toggle_sort", map[string]any{"screen_id": "visit_requests", "key": "visitor_name"}, &v)
	require.Equal(t, []string{"VR-2024-003", "VR-2024-002"}, requestNumbers(v))
	callTool(t, cs, "toggle_sort", map[string]any{"screen_id": "visit_requests", "key": "visitor_name"}, &v)
	require.Equal(t, []string{"VR-2024-002", "VR-2024-003"}, requestNumbers(v))

	// Filters persist on the connection's instance between calls.
	callTool(t, cs, "view_screen", map[string]any{"screen_id": "visit_requests", "size": 1}, &v)
	require.Equal(t, []string{"VR-2024-002"}, requestNumbers(v))
	require.Equal(t, 2, v.Page.TotalRows)

	callTool(t, cs, "refresh_screen", map[string]any{"screen_id": "visit_requests"}, &v)
	require.True(t, v.Loaded)
	require.Len(t, v.Rows, 2)

	res := callTool(t, cs, "view_screen", map[string]any{"screen_id": "projects"}, nil)
	require.True(t, res.IsError)
	require.Contains(t, text(res), "FORBIDDEN")
}

func TestFunctional_ConnectionsAreIsolated(t *testing.T) {
	ts := testserver.New(t)
	require.NoError(t, ts.AddAPIKey("coord", "acme", "u-coord", identity.RoleVisitCoordinator))
	first := connect(t, ts, "coord")
	second := connect(t, ts, "coord")

	var v screen.View
	callTool(t, first, "view_screen", map[string]any{"screen_id": "visit_requests", "search": "doe"}, &v)
	require.Len(t, v.Rows, 1)

	callTool(t, second, "view_screen", map[string]any{"screen_id": "visit_requests"}, &v)
	require.Len(t, v.Rows, 3)
	require.Empty(t, v.Search)
}

func TestFunctional_CaseLookup(t *testing.T) {
	ts := testserver.New(t)
	require.NoError(t, ts.AddAPIKey("analyst", "acme", "u-an", identity.RoleExportAnalyst))
	cs := connect(t, ts, "analyst")

	var res caselookup.Result
	callTool(t, cs, "lookup_case", map[string]any{"number": "EC-2024-01"}, &res)
	require.Equal(t, caselookup.StateNotFound, res.State)
	require.Equal(t, []string{"EC-2024-001", "EC-2024-010", "EC-2024-002"}, res.Suggestions)

	callTool(t, cs, "lookup_case", map[string]any{"number": "EC-2024-001"}, &res)
	require.Equal(t, caselookup.StateFound, res.State)
	require.Equal(t, "Sensor shipment", res.Case.Text("title"))
}
