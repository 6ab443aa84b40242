package devapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/repository/mocks"
	"github.com/rpggio/deskview/internal/sqlite"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.FixtureRepository {
	t.Helper()
	db, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewFixtureRepository(db)
}

func newSeededServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := newStore(t)
	seed, err := devapi.LoadSeed("")
	require.NoError(t, err)
	n, err := seed.Apply(context.Background(), store)
	require.NoError(t, err)
	require.Positive(t, n)

	server := httptest.NewServer(devapi.NewHandler(store, devapi.DefaultOptions()))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url, tenant, user string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func listIDs(t *testing.T, body map[string]any, envelope string) []string {
	t.Helper()
	rows, ok := body[envelope].([]any)
	require.True(t, ok, "missing envelope %q", envelope)
	var out []string
	for _, r := range rows {
		out = append(out, r.(map[string]any)["id"].(string))
	}
	return out
}

func TestHandler_ListIsTenantScoped(t *testing.T) {
	server := newSeededServer(t)

	status, body := get(t, server.URL+"/visits", "acme", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"v1", "v2", "v3"}, listIDs(t, body, "items"))

	status, body = get(t, server.URL+"/visits", "globex", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"g1"}, listIDs(t, body, "items"))

	status, body = get(t, server.URL+"/projects", "acme", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, listIDs(t, body, "data"), 3)

	status, body = get(t, server.URL+"/visits", "", "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "missing X-Tenant-ID header", body["message"])
}

func TestHandler_UserView(t *testing.T) {
	server := newSeededServer(t)

	_, body := get(t, server.URL+"/visits/hosted", "acme", "u-host")
	require.Equal(t, []string{"v1", "v2"}, listIDs(t, body, "items"))

	_, body = get(t, server.URL+"/visits/hosted", "acme", "")
	require.Empty(t, listIDs(t, body, "items"))
}

func TestHandler_GetByIDOrNumber(t *testing.T) {
	server := newSeededServer(t)

	status, body := get(t, server.URL+"/cases/c2", "acme", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "EC-2024-002", body["number"])

	status, body = get(t, server.URL+"/cases/EC-2024-001", "acme", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "c1", body["id"])

	status, body = get(t, server.URL+"/cases/EC-2024-999", "acme", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Not Found", body["message"])
}

func postFile(t *testing.T, url, tenant, field, content string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "upload.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Tenant-ID", tenant)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHandler_Import(t *testing.T) {
	server := newSeededServer(t)

	status, body := postFile(t, server.URL+"/reports/import", "acme", "file", "id,title,type\nr3,Q2 Visits,visits\nr1,Q1 Visits (rev),visits\n")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 2, body["imported"])

	_, body = get(t, server.URL+"/reports", "acme", "")
	require.Equal(t, []string{"r1", "r2", "r3"}, listIDs(t, body, "items"))

	status, body = get(t, server.URL+"/reports/r1", "acme", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Q1 Visits (rev)", body["title"])

	status, body = postFile(t, server.URL+"/reports/import", "acme", "file", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, devapi.ErrEmptyImport.Error(), body["message"])

	status, _ = postFile(t, server.URL+"/reports/import", "acme", "other", "id\n1\n")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_StoreFailure(t *testing.T) {
	store := &mocks.FixtureStore{}
	store.On("ListFixtures", mock.Anything, "acme", "visits").Return(nil, errors.New("disk full"))
	server := httptest.NewServer(devapi.NewHandler(store, devapi.DefaultOptions()))
	t.Cleanup(server.Close)

	status, body := get(t, server.URL+"/visits", "acme", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "internal error", body["message"])
	store.AssertExpectations(t)
}

func TestHandler_BareArray(t *testing.T) {
	store := &mocks.FixtureStore{}
	store.On("ListFixtures", mock.Anything, "acme", "things").Return([]devapi.Fixture{
		{ID: "1", Payload: map[string]any{"id": "1"}},
	}, nil)
	server := httptest.NewServer(devapi.NewHandler(store, devapi.Options{}))
	t.Cleanup(server.Close)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/things", nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "acme")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rows []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
}

func TestParseSeed(t *testing.T) {
	seed, err := devapi.ParseSeed([]byte(`
tenants:
  t1:
    things:
      - {id: a, when: 2024-03-01}
      - {number: N-1}
`))
	require.NoError(t, err)

	store := &mocks.FixtureStore{}
	store.On("PutFixtures", mock.Anything, "t1", "things", mock.MatchedBy(func(items []devapi.Fixture) bool {
		return len(items) == 2 &&
			items[0].ID == "a" && items[0].Payload["when"] == "2024-03-01" &&
			items[1].ID != "" && items[1].Number == "N-1"
	})).Return(2, nil)

	n, err := seed.Apply(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	store.AssertExpectations(t)

	_, err = devapi.ParseSeed([]byte("tenants: [nope"))
	require.Error(t, err)
}
