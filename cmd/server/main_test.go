package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/moderncolours/paintops/internal/alerts"
	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/audit"
	"github.com/moderncolours/paintops/internal/config"
	"github.com/moderncolours/paintops/internal/fcache"
	"github.com/moderncolours/paintops/internal/forecast"
	"github.com/moderncolours/paintops/internal/health"
	"github.com/moderncolours/paintops/internal/metrics"
	"github.com/moderncolours/paintops/internal/rebalance"
	"github.com/moderncolours/paintops/internal/simulate"
	"github.com/moderncolours/paintops/internal/store"
)

var (
	metricsOnce sync.Once
	testMetrics *metrics.Metrics
)

// sharedMetrics avoids double-registering collectors in the default
// Prometheus registry across tests.
func sharedMetrics() *metrics.Metrics {
	metricsOnce.Do(func() { testMetrics = metrics.New() })
	return testMetrics
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	ms := store.NewMemoryStore("")
	cache, err := fcache.NewMemoryCache()
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	trail, err := audit.Open(t.TempDir())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { trail.Close() })

	provider := forecast.NewTimeoutProvider(forecast.New(ms), cfg.Forecast.Timeout)
	planner := rebalance.NewPlanner(ms, provider)

	return &Server{
		cfg:      cfg,
		store:    ms,
		cache:    cache,
		provider: provider,
		engine:   simulate.NewEngine(simulate.DefaultCatalog()),
		scorer:   health.NewScorer(ms),
		planner:  planner,
		alerts:   alerts.NewGenerator(ms, provider, planner),
		trail:    trail,
		metrics:  sharedMetrics(),
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}, ms
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func seedSales(t *testing.T, ms *store.MemoryStore, dealerID, skuID int64, days int, demand float64) {
	t.Helper()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	records := make([]api.SalesRecord, days)
	for i := range records {
		records[i] = api.SalesRecord{
			DealerID: dealerID, SKUID: skuID,
			Date: today.AddDate(0, 0, -days+i), Demand: demand, Fulfilled: demand,
		}
	}
	if err := ms.AddSales(context.Background(), records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status ok", body)
	}
}

func TestDealerCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/dealers",
		api.Dealer{Name: "Modern Colours Surat", Region: "West", City: "Surat"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[api.Dealer](t, rec)
	if created.ID == 0 {
		t.Fatalf("created dealer has no id")
	}

	// Partial update: only the city changes, other fields survive.
	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/dealers/%d", created.ID),
		map[string]string{"city": "Navsari"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[api.Dealer](t, rec)
	if updated.City != "Navsari" || updated.Name != "Modern Colours Surat" || updated.Region != "West" {
		t.Fatalf("partial update result = %+v", updated)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/regions", nil)
	regions := decode[[]string](t, rec)
	if len(regions) != 1 || regions[0] != "West" {
		t.Fatalf("regions = %v, want [West]", regions)
	}

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/api/dealers/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/dealers/%d", created.ID),
		map[string]string{"city": "X"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateDealerValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/dealers", api.Dealer{Name: "No Region"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInventoryConflict(t *testing.T) {
	srv, ms := newTestServer(t)
	mux := srv.routes()
	ctx := context.Background()

	dealer := &api.Dealer{Name: "Store", Region: "North"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatal(err)
	}
	sku := &api.SKU{Name: "Primer 5L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatal(err)
	}

	inv := api.Inventory{DealerID: dealer.ID, SKUID: sku.ID, Quantity: 10, LastReceived: time.Now().UTC()}
	if rec := doJSON(t, mux, http.MethodPost, "/api/inventory", inv); rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, mux, http.MethodPost, "/api/inventory", inv); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}

	// Unknown dealer is a 404, not a 500.
	bad := api.Inventory{DealerID: 999, SKUID: sku.ID, Quantity: 1}
	if rec := doJSON(t, mux, http.MethodPost, "/api/inventory", bad); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown dealer status = %d, want 404", rec.Code)
	}
}

func TestForecastEndpoint(t *testing.T) {
	srv, ms := newTestServer(t)
	mux := srv.routes()
	ctx := context.Background()

	dealer := &api.Dealer{Name: "North Traders", Region: "North"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatal(err)
	}
	sku := &api.SKU{Name: "Interior Emulsion 10L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatal(err)
	}
	seedSales(t, ms, dealer.ID, sku.ID, 60, 100)

	path := fmt.Sprintf("/api/forecast?sku_id=%d&region=North&horizon=14", sku.ID)
	rec := doJSON(t, mux, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ForecastResponse](t, rec)
	if len(resp.Points) != 14 {
		t.Fatalf("points = %d, want 14", len(resp.Points))
	}
	if resp.Model == "" || resp.Model == "baseline-average" {
		t.Errorf("model = %q, want a selected model with 60 days of history", resp.Model)
	}
	if resp.Chart == nil || len(resp.Chart.Labels) != 14 || len(resp.Chart.Datasets) != 3 {
		t.Errorf("chart missing or malformed: %+v", resp.Chart)
	}

	// Same query again should hit the cache and agree exactly.
	again := decode[api.ForecastResponse](t, doJSON(t, mux, http.MethodGet, path, nil))
	if again.Points[0].Forecast != resp.Points[0].Forecast {
		t.Errorf("cached forecast differs: %v vs %v", again.Points[0], resp.Points[0])
	}
}

func TestForecastValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	if rec := doJSON(t, mux, http.MethodGet, "/api/forecast?region=North", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing sku status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/forecast?sku_id=1&region=North&horizon=500", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad horizon status = %d, want 400", rec.Code)
	}
}

func TestWhatIfEndpoint(t *testing.T) {
	srv, ms := newTestServer(t)
	mux := srv.routes()
	ctx := context.Background()

	dealer := &api.Dealer{Name: "North Traders", Region: "North"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatal(err)
	}
	sku := &api.SKU{Name: "Interior Emulsion 10L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatal(err)
	}
	// Thin history forces the degraded baseline, so the shift applies
	// directly to the level.
	seedSales(t, ms, dealer.ID, sku.ID, 5, 50)

	rec := doJSON(t, mux, http.MethodPost, "/api/simulate/whatif", api.WhatIfRequest{
		SKUID: sku.ID, Region: "North", Horizon: 14, PercentChange: 10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ForecastResponse](t, rec)
	if resp.Model != "baseline-average" {
		t.Fatalf("model = %q, want baseline-average", resp.Model)
	}
	for i, pt := range resp.Points {
		if pt.Forecast != 55 {
			t.Fatalf("point %d forecast = %v, want 55 (+10%% of 50)", i, pt.Forecast)
		}
	}
	if !strings.Contains(resp.Explanation, "+10.0%") {
		t.Errorf("explanation = %q, want the shift named", resp.Explanation)
	}

	// The simulation is recorded in the audit trail.
	entries := decode[[]api.AuditEntry](t, doJSON(t, mux, http.MethodGet, "/api/audit", nil))
	if len(entries) == 0 || entries[0].EntityType != "whatif" {
		t.Errorf("audit entries = %+v, want a whatif record first", entries)
	}
}

func TestWhatIfValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/simulate/whatif",
		api.WhatIfRequest{Region: "North"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCurveEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodGet, "/api/simulate/curve?event_tag=festival-season&days=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.CurveResponse](t, rec)
	if !resp.Known {
		t.Fatalf("festival-season should be a known tag")
	}
	if len(resp.Dates) != 10 || len(resp.Multipliers) != 10 {
		t.Fatalf("lengths = %d/%d, want 10/10", len(resp.Dates), len(resp.Multipliers))
	}

	unknown := decode[api.CurveResponse](t, doJSON(t, mux, http.MethodGet, "/api/simulate/curve?event_tag=nope", nil))
	if unknown.Known {
		t.Fatalf("unknown tag marked known")
	}
	for _, m := range unknown.Multipliers {
		if m != 1 {
			t.Fatalf("unknown tag multiplier = %v, want 1", m)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.limiter = rate.NewLimiter(rate.Limit(1), 1)
	h := srv.rateLimited(srv.routes())

	first := doJSON(t, h, http.MethodGet, "/api/regions", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}
	second := doJSON(t, h, http.MethodGet, "/api/regions", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	// Health probes bypass the limiter.
	if rec := doJSON(t, h, http.MethodGet, "/api/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}
