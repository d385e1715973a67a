package dashboardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/chart"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/fetch"
	"tradedesk/internal/store/snapshot"
	"tradedesk/internal/view"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, endpoint string) fetch.Result {
	body, ok := s[endpoint]
	if !ok {
		err := errors.New("connection refused")
		return fetch.Result{Endpoint: endpoint, Err: err, Warning: "Error fetching data: connection refused"}
	}
	return fetch.Result{Endpoint: endpoint, Body: json.RawMessage(body), Status: 200, FetchedAt: time.Now()}
}

type countingFetcher struct {
	stubFetcher
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(ctx context.Context, endpoint string) fetch.Result {
	c.calls.Add(1)
	return c.stubFetcher.Fetch(ctx, endpoint)
}

func newTestServer(t *testing.T, fetcher dashboard.Fetcher, opts ...dashboard.Option) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog, err := view.NewCatalog("")
	require.NoError(t, err)
	svc := dashboard.NewService(catalog, fetcher, nil, opts...)
	srv, err := NewServer(ServerConfig{Dashboard: svc})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t, stubFetcher{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIView(t *testing.T) {
	h := newTestServer(t, stubFetcher{"trade_history": `[{"Time":0,"Symbol":"BTC","PNL":5}]`})
	rec := do(t, h, http.MethodGet, "/api/views/trade_history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		View  string `json:"view"`
		Table struct {
			Rows [][]struct {
				Text string `json:"text"`
				Sign string `json:"sign"`
			} `json:"rows"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trade_history", body.View)
	require.Len(t, body.Table.Rows, 1)
	assert.Equal(t, "01 Jan 1970 05:30:00 AM", body.Table.Rows[0][0].Text)
	assert.Equal(t, "+5.00 USDT", body.Table.Rows[0][2].Text)
	assert.Equal(t, "positive", body.Table.Rows[0][2].Sign)
}

func TestAPIView_FetchFailureStillOK(t *testing.T) {
	rec := do(t, newTestServer(t, stubFetcher{}), http.MethodGet, "/api/views/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error fetching data: connection refused")
	assert.Contains(t, rec.Body.String(), `"empty":true`)
}

func TestAPI_UnknownNames(t *testing.T) {
	h := newTestServer(t, stubFetcher{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/views/nope").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/pages/nope").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/pages/nope").Code)
}

func TestAPI_Catalog(t *testing.T) {
	h := newTestServer(t, stubFetcher{})
	rec := do(t, h, http.MethodGet, "/api/pages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analytics"`)

	rec = do(t, h, http.MethodGet, "/api/views")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Views []viewSummary `json:"views"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Views, 10)
}

func TestAPIPage(t *testing.T) {
	h := newTestServer(t, stubFetcher{"account_summary": `{"Balance":12.5}`})
	rec := do(t, h, http.MethodGet, "/api/pages/account")
	require.Equal(t, http.StatusOK, rec.Code)
	var body dashboard.PageRender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	require.Len(t, body.Views, 1)
	require.Len(t, body.Views[0].Metrics, 1)
	assert.Equal(t, "12.50 USDT", body.Views[0].Metrics[0].Text)
}

func TestHTMLPages(t *testing.T) {
	h := newTestServer(t, stubFetcher{"positions": `[{"Symbol":"BTC","Amount":1,"Current PNL":-2}]`})

	rec := do(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/account", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/pages/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Active Positions")
	assert.Contains(t, html, `class="pnl-negative">-2.00 USDT`)
	assert.NotContains(t, html, "<iframe", "no chart renderer configured")

	rec = do(t, h, http.MethodGet, "/pages/account")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error fetching data")
}

func TestStaticAsset(t *testing.T) {
	rec := do(t, newTestServer(t, stubFetcher{}), http.MethodGet, "/static/dashboard.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".pnl-positive")
}

func TestCacheRefresh(t *testing.T) {
	cache := fetch.NewCache(time.Minute)
	cache.Set("positions", fetch.Result{Endpoint: "positions", Body: json.RawMessage(`[]`)})
	h := newTestServer(t, stubFetcher{}, dashboard.WithCache(cache))

	rec := do(t, h, http.MethodPost, "/api/cache/refresh?endpoint=positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dropped":1,"endpoint":"positions"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/cache/refresh?redirect=/pages/positions")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/pages/positions", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodPost, "/api/cache/refresh?redirect=//evil.example")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalEndpointsUnavailable(t *testing.T) {
	h := newTestServer(t, stubFetcher{})
	for _, target := range []string{"/api/snapshots", "/api/fetches", "/api/views/positions/chart"} {
		rec := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := do(t, h, http.MethodGet, "/api/snapshots?since=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartHTMLRoute(t *testing.T) {
	h := newTestServer(t,
		stubFetcher{"positions": `[{"Symbol":"BTC","Amount":1}]`, "open_orders": `[]`},
		dashboard.WithCharts(chart.NewRenderer(chart.Options{}), time.Second),
	)
	rec := do(t, h, http.MethodGet, "/api/views/positions/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	rec = do(t, h, http.MethodGet, "/api/views/open_orders/chart")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTMLPage_EmbedsChartsFromSameFetch(t *testing.T) {
	f := &countingFetcher{stubFetcher: stubFetcher{"positions": `[{"Symbol":"BTC","Amount":1}]`}}
	h := newTestServer(t, f, dashboard.WithCharts(chart.NewRenderer(chart.Options{}), time.Second))

	rec := do(t, h, http.MethodGet, "/pages/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, `<iframe class="charts" srcdoc="`)
	assert.Contains(t, html, "Position Size Distribution")
	assert.NotContains(t, html, "/api/views/positions/chart")
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEquityChartRoute(t *testing.T) {
	store, err := snapshot.NewStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	balance := 1000.0
	_, err = store.Save(context.Background(), snapshot.Record{TakenAt: time.UnixMilli(1_700_000_000_000), Balance: &balance})
	require.NoError(t, err)

	h := newTestServer(t, stubFetcher{},
		dashboard.WithSnapshots(store),
		dashboard.WithCharts(chart.NewRenderer(chart.Options{}), time.Second),
	)
	rec := do(t, h, http.MethodGet, "/api/views/equity/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Balance Over Time")

	rec = do(t, h, http.MethodGet, "/api/views/equity")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/pages/equity")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "srcdoc=")
}
