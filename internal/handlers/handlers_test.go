package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
	"github.com/pannnnl/hkbus-eta/internal/source/sourcetest"
	"github.com/pannnnl/hkbus-eta/internal/stops"
)

type testEnv struct {
	server  *httptest.Server
	catalog *catalog.Catalog
	board   *eta.Board
}

func newTestEnv(t *testing.T, build bool) *testEnv {
	t.Helper()

	kmb := &sourcetest.Preloaded{
		Fake: &sourcetest.Fake{
			Op: models.OperatorKMB,
			RoutesFunc: func(ctx context.Context) ([]models.Route, error) {
				return []models.Route{
					{Code: "1A", ServiceVariant: "1", Direction: models.Outbound, OriginName: "中秀茂坪", DestinationName: "尖沙咀碼頭"},
					{Code: "1A", ServiceVariant: "1", Direction: models.Inbound},
					{Code: "1A", ServiceVariant: "2", Direction: models.Outbound},
				}, nil
			},
			StopsFunc: func(ctx context.Context, r models.Route, dir models.Direction) ([]models.RouteStopLink, error) {
				if dir == models.Inbound {
					return nil, nil
				}
				return []models.RouteStopLink{
					{RouteCode: r.Code, Operator: models.OperatorKMB, ServiceVariant: r.ServiceVariant, Direction: dir, Sequence: 2, StopID: "B2"},
					{RouteCode: r.Code, Operator: models.OperatorKMB, ServiceVariant: r.ServiceVariant, Direction: dir, Sequence: 1, StopID: "A1"},
				}, nil
			},
			ETAFunc: func(ctx context.Context, stopID string, r models.Route) ([]models.EtaEntry, error) {
				return []models.EtaEntry{
					{StopID: stopID, RouteCode: r.Code, Direction: models.Outbound, Sequence: 1, Arrival: time.Now().Add(5 * time.Minute)},
				}, nil
			},
		},
		StopList: []models.Stop{{StopID: "A1", DisplayName: "站一"}},
	}
	reg := source.NewRegistry(kmb)

	cat := catalog.New()
	builder := catalog.NewBuilder(reg, cat)
	if build {
		require.NoError(t, builder.Build(context.Background()))
	}
	board := eta.New(reg, eta.Options{PollInterval: time.Hour, TickInterval: time.Hour})
	t.Cleanup(board.Close)

	hub := NewStreamHub(board)
	router := NewRouter(
		NewRouteHandler(cat, builder, stops.NewLoader(reg, cat, 2)),
		NewETAHandler(board, cat, nil),
		hub,
		[]string{"http://localhost:5173"},
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, catalog: cat, board: board}
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestSearchRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/api/routes?q=%201a%20")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out SearchRoutesResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "1A", out.Query)
	assert.Len(t, out.Regular, 2)
	assert.Len(t, out.Special, 1)
	assert.Equal(t, 3, out.Count)
}

func TestSearchRoutes_Errors(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		query    string
		expected int
	}{
		{"1A%21", http.StatusBadRequest},
		{"", http.StatusBadRequest},
		{"999", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, body := env.do(t, http.MethodGet, "/api/routes?q="+tt.query)
		assert.Equal(t, tt.expected, resp.StatusCode, "query %q: %s", tt.query, body)
	}
}

func TestSearchRoutes_WhileLoading(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/routes?q=1A")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "still loading")
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))

	resp, _ = env.do(t, http.MethodPost, "/api/catalog/reload")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/routes?q=1A")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetStops(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/api/routes/KMB/1A/1/outbound/stops")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out GetStopsResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Stops, 2)
	assert.Equal(t, "A1", out.Stops[0].StopID)
	assert.Equal(t, "站一", out.Stops[0].Name)
	assert.Equal(t, "", out.Stops[1].Name, "missing metadata degrades to an empty name")
	assert.Equal(t, "中秀茂坪", out.Route.OriginName)

	resp, _ = env.do(t, http.MethodGet, "/api/routes/KMB/1A/1/inbound/stops")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/routes/KMB/1A/7/outbound/stops")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/routes/KMB/1A/1/sideways/stops")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExpandAndCollapse(t *testing.T) {
	env := newTestEnv(t, true)
	path := "/api/eta/KMB/1A/1/outbound/A1"

	resp, body := env.do(t, http.MethodPost, path)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, path)
		var v eta.View
		return json.Unmarshal(body, &v) == nil && len(v.Arrivals) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, body = env.do(t, http.MethodGet, "/api/eta")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ready"`)

	resp, body = env.do(t, http.MethodGet, "/api/eta/feed?format=text")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "KMB-1A-1"), string(body))

	resp, body = env.do(t, http.MethodDelete, path)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"collapsed":true`)
	assert.Equal(t, 0, env.board.Expanded())

	resp, _ = env.do(t, http.MethodPost, path+"/refresh")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExpand_UnknownRoute(t *testing.T) {
	env := newTestEnv(t, true)

	resp, _ := env.do(t, http.MethodPost, "/api/eta/KMB/99X/1/outbound/A1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, env.board.Expanded())
}

func TestToggle(t *testing.T) {
	env := newTestEnv(t, true)
	path := "/api/eta/KMB/1A/1/outbound/A1/toggle"

	env.do(t, http.MethodPost, path)
	assert.Equal(t, 1, env.board.Expanded())
	_, body := env.do(t, http.MethodPost, path)
	assert.Contains(t, string(body), `"status":"collapsed"`)
	assert.Equal(t, 0, env.board.Expanded())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ready"`)

	resp, body = env.do(t, http.MethodGet, "/api/health/data")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"operators":[]`)

	resp, _ = env.do(t, http.MethodGet, "/api/eta/KMB/1A/1/outbound/A1/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, true)
	hub := NewStreamHub(env.board)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleStream))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "data: []"), string(buf[:n]))
}
