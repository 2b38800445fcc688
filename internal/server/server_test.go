package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/repricer/internal/ebay"
	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/reprice"
	"github.com/guarzo/repricer/internal/schedule"
	"github.com/guarzo/repricer/internal/store"
)

type testEnv struct {
	server   *Server
	gateway  *ebay.MockGateway
	listings *store.MemoryListings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	listings := store.NewMemoryListings()
	strategies := store.NewMemoryStrategies()
	rules := store.NewMemoryRules()
	gateway := ebay.NewMockGateway()
	recorder := history.NewRecorder(history.NewMemoryStore())
	orch := reprice.NewOrchestrator(listings, strategies, rules, gateway, recorder)
	sched := schedule.New(orch, listings, recorder, schedule.Config{ItemsPerSecond: 1000})

	s := &model.PricingStrategy{
		OwnerID:             "seller-1",
		StrategyName:        "undercut",
		RepricingRule:       model.RuleBeatLowest,
		AdjustmentType:      model.AdjustAmount,
		AdjustmentValue:     1,
		NoCompetitionAction: model.NoCompKeepCurrent,
		IsActive:            true,
	}
	require.NoError(t, strategies.Put(context.Background(), s))

	l := &model.Listing{
		ItemID:            "item-1",
		OwnerID:           "seller-1",
		CurrentPrice:      100,
		StrategyID:        s.ID,
		MonitoringEnabled: true,
		Competitors:       []model.CompetitorSnapshot{{CompetitorItemID: "c1", Price: 95}},
	}
	require.NoError(t, listings.Put(context.Background(), l))
	gateway.Prices["item-1"] = 100
	gateway.Competitors["item-1"] = l.Competitors

	return &testEnv{
		server:   New(sched, recorder, listings, nil),
		gateway:  gateway,
		listings: listings,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestRepriceItem(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodPost, "/api/reprice/item-1")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result reprice.ExecutionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, model.StatusDone, result.Status)
	assert.Equal(t, 94.0, result.NewPrice)
	assert.Equal(t, 1, e.gateway.UpdateCount())
}

func TestRepriceItem_NotFound(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/reprice/ghost")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRepriceItem_UpstreamFailure(t *testing.T) {
	e := newTestEnv(t)
	e.gateway.UpdateErr = &ebay.APIError{Code: "500", Message: "internal"}

	resp, body := e.do(t, http.MethodPost, "/api/reprice/item-1")

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "internal")
}

func TestMonitorRun(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodPost, "/api/monitor/run")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var report schedule.CycleReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Updated)
}

func TestRepriceAll(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodPost, "/api/reprice-all")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var report schedule.CycleReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Total)
}

func TestHistoryEndpoints(t *testing.T) {
	e := newTestEnv(t)
	// Generate one history record first.
	resp, _ := e.do(t, http.MethodPost, "/api/reprice/item-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/history/item-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Count   int                  `json:"count"`
		Records []model.PriceHistory `json:"records"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, 1, page.Count)
	assert.Equal(t, model.StatusDone, page.Records[0].Status)

	resp, body = e.do(t, http.MethodGet, "/api/history/item-1/analytics?period=7d")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analytics history.Analytics
	require.NoError(t, json.Unmarshal(body, &analytics))
	assert.Len(t, analytics.PricePoints, 1)

	resp, body = e.do(t, http.MethodGet, "/api/history/item-1/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary history.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.True(t, summary.HasAnyHistory)
	assert.Equal(t, 94.0, summary.LastPrice)
}

func TestHistoryAnalytics_BadPeriod(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/api/history/item-1/analytics?period=2weeks")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryArchive(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodPost, "/api/history/archive?keepRecentCount=5")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"keepRecentCount":5`)

	resp, _ = e.do(t, http.MethodPost, "/api/history/archive?keepRecentCount=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetManualPrice(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodPut, "/api/listings/item-1/price?price=88.50")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var record model.PriceHistory
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, model.StatusManual, record.Status)
	assert.Equal(t, model.SourceManual, record.Source)
	assert.Equal(t, 88.50, record.NewPrice)
	require.NotNil(t, record.OldPrice)
	assert.Equal(t, 100.0, *record.OldPrice)

	listing, err := e.listings.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, 88.50, listing.CurrentPrice)

	resp, _ = e.do(t, http.MethodPut, "/api/listings/item-1/price?price=-5")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPut, "/api/listings/ghost/price?price=10")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompetitorSearch_NotConfigured(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/api/competitors/search?q=widget")

	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
