package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
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
	"github.com/moderncolours/paintops/pkg/otel"
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	cache    fcache.Cache
	provider forecast.Provider
	engine   *simulate.Engine
	scorer   *health.Scorer
	planner  *rebalance.Planner
	alerts   *alerts.Generator
	trail    *audit.Trail
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
}

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	cache, err := openCache(cfg)
	if err != nil {
		log.Fatalf("Failed to open forecast cache: %v", err)
	}

	trail, err := audit.Open(cfg.Audit.Dir)
	if err != nil {
		log.Fatalf("Failed to open audit trail: %v", err)
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		otelCfg := otel.DefaultConfig("paintops")
		otelCfg.CollectorEndpoint = cfg.Tracing.Endpoint
		tp, err = otel.InitTracer(context.Background(), otelCfg)
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
	}

	provider := forecast.NewTimeoutProvider(forecast.New(st), cfg.Forecast.Timeout)
	planner := rebalance.NewPlanner(st, provider)

	srv := &Server{
		cfg:      cfg,
		store:    st,
		cache:    cache,
		provider: provider,
		engine:   simulate.NewEngine(simulate.DefaultCatalog()),
		scorer:   health.NewScorer(st),
		planner:  planner,
		alerts:   alerts.NewGenerator(st, provider, planner),
		trail:    trail,
		metrics:  metrics.New(),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst),
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.rateLimited(srv.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := trail.Close(); err != nil {
		log.Printf("Error closing audit trail: %v", err)
	}
	if err := cache.Close(); err != nil {
		log.Printf("Error closing forecast cache: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
	if tp != nil {
		if err := otel.Shutdown(context.Background(), tp); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}

	log.Println("Server stopped")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(cfg.Store.SnapshotPath), nil
	case "postgres":
		return store.NewPostgresStore(context.Background(), cfg.Store.PostgresDSN)
	default:
		return nil, errors.New("unknown store backend: " + cfg.Store.Backend)
	}
}

func openCache(cfg *config.Config) (fcache.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return fcache.NewMemoryCache()
	case "redis":
		return fcache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	default:
		return nil, errors.New("unknown cache backend: " + cfg.Cache.Backend)
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/regions", s.handleRegions)

	mux.HandleFunc("GET /api/dealers", s.handleListDealers)
	mux.HandleFunc("POST /api/dealers", s.handleCreateDealer)
	mux.HandleFunc("PUT /api/dealers/{id}", s.handleUpdateDealer)
	mux.HandleFunc("DELETE /api/dealers/{id}", s.handleDeleteDealer)

	mux.HandleFunc("GET /api/skus", s.handleListSKUs)
	mux.HandleFunc("POST /api/skus", s.handleCreateSKU)
	mux.HandleFunc("PUT /api/skus/{id}", s.handleUpdateSKU)
	mux.HandleFunc("DELETE /api/skus/{id}", s.handleDeleteSKU)

	mux.HandleFunc("GET /api/inventory", s.handleListInventory)
	mux.HandleFunc("POST /api/inventory", s.handleCreateInventory)
	mux.HandleFunc("PUT /api/inventory/{id}", s.handleUpdateInventory)
	mux.HandleFunc("DELETE /api/inventory/{id}", s.handleDeleteInventory)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/metrics/inventory", s.handleInventoryMetrics)
	mux.HandleFunc("GET /api/health/dealers", s.handleDealerHealth)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/rebalance", s.handleRebalance)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/simulate/whatif", s.handleWhatIf)
	mux.HandleFunc("GET /api/simulate/curve", s.handleCurve)
	mux.HandleFunc("GET /api/audit", s.handleAudit)

	mux.Handle("GET /metrics", s.metricsHandler())

	return mux
}

// rateLimited throttles the API surface; /metrics and health probes pass.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/health" {
			if !s.limiter.Allow() {
				w.Header().Set("Retry-After", "10")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.Handler()
	user, pass := s.cfg.Metrics.Username, s.cfg.Metrics.Password
	if user == "" {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.Regions(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

// --- Dealers ---

func (s *Server) handleListDealers(w http.ResponseWriter, r *http.Request) {
	dealers, err := s.store.ListDealers(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dealers)
}

func (s *Server) handleCreateDealer(w http.ResponseWriter, r *http.Request) {
	var d api.Dealer
	if !decodeBody(w, r, &d) {
		return
	}
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Region) == "" {
		writeError(w, http.StatusBadRequest, "name and region are required")
		return
	}
	if err := s.store.CreateDealer(r.Context(), &d); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDealer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := s.store.GetDealer(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	oldRegion := existing.Region

	// Decoding into the stored record keeps fields the caller omitted.
	if !decodeBody(w, r, existing) {
		return
	}
	existing.ID = id
	if err := s.store.UpdateDealer(r.Context(), existing); err != nil {
		s.storeError(w, err)
		return
	}

	// A region move changes both regions' demand series.
	if !strings.EqualFold(oldRegion, existing.Region) {
		s.invalidateRegions(r.Context(), oldRegion, existing.Region)
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteDealer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := s.store.GetDealer(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.store.DeleteDealer(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	s.invalidateRegions(r.Context(), existing.Region)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// invalidateRegions drops cached forecasts for every SKU in the regions.
func (s *Server) invalidateRegions(ctx context.Context, regions ...string) {
	skus, err := s.store.ListSKUs(ctx)
	if err != nil {
		log.Printf("Cache invalidation skipped, cannot list skus: %v", err)
		return
	}
	for _, sku := range skus {
		for _, region := range regions {
			if err := s.cache.Invalidate(ctx, sku.ID, region); err != nil {
				log.Printf("Cache invalidation error for sku %d region %s: %v", sku.ID, region, err)
			}
		}
	}
}

// --- SKUs ---

func (s *Server) handleListSKUs(w http.ResponseWriter, r *http.Request) {
	skus, err := s.store.ListSKUs(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, skus)
}

func (s *Server) handleCreateSKU(w http.ResponseWriter, r *http.Request) {
	var sku api.SKU
	if !decodeBody(w, r, &sku) {
		return
	}
	if strings.TrimSpace(sku.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateSKU(r.Context(), &sku); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sku)
}

func (s *Server) handleUpdateSKU(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := s.store.GetSKU(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !decodeBody(w, r, existing) {
		return
	}
	existing.ID = id
	if err := s.store.UpdateSKU(r.Context(), existing); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteSKU(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSKU(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Inventory ---

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	dealerID := queryID(r, "dealer_id")
	skuID := queryID(r, "sku_id")
	items, err := s.store.ListInventory(r.Context(), dealerID, skuID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateInventory(w http.ResponseWriter, r *http.Request) {
	var inv api.Inventory
	if !decodeBody(w, r, &inv) {
		return
	}
	if _, err := s.store.GetDealer(r.Context(), inv.DealerID); err != nil {
		s.storeError(w, err)
		return
	}
	if _, err := s.store.GetSKU(r.Context(), inv.SKUID); err != nil {
		s.storeError(w, err)
		return
	}
	inv.LastUpdated = time.Now().UTC()
	if err := s.store.CreateInventory(r.Context(), &inv); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := s.store.GetInventory(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !decodeBody(w, r, existing) {
		return
	}
	existing.ID = id
	existing.LastUpdated = time.Now().UTC()
	if err := s.store.UpdateInventory(r.Context(), existing); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteInventory(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Dashboard ---

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := s.store.ListInventory(ctx, 0, 0)
	if err != nil {
		s.storeError(w, err)
		return
	}
	totalUnits := 0
	for _, item := range items {
		totalUnits += item.Quantity
	}

	skus, err := s.store.ListSKUs(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	dealers, err := s.store.ListDealers(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}

	found, err := s.alerts.Generate(ctx, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate alerts")
		log.Printf("Summary alerts error: %v", err)
		return
	}
	var stockout, deadStock int
	for _, a := range found {
		switch a.AlertType {
		case alerts.AlertStockout:
			stockout++
		case alerts.AlertDeadStock:
			deadStock++
		}
	}

	writeJSON(w, http.StatusOK, api.SummaryResponse{
		TotalInventoryUnits: totalUnits,
		TotalSKUs:           len(skus),
		TotalDealers:        len(dealers),
		StockoutRiskCount:   stockout,
		DeadStockRiskCount:  deadStock,
	})
}

func (s *Server) handleInventoryMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealerID := queryID(r, "dealer_id")
	today := time.Now().UTC().Truncate(24 * time.Hour)

	items, err := s.store.ListInventory(ctx, dealerID, 0)
	if err != nil {
		s.storeError(w, err)
		return
	}
	var totalQty, agingQty int
	for _, item := range items {
		totalQty += item.Quantity
		if today.Sub(item.LastReceived) > 60*24*time.Hour {
			agingQty += item.Quantity
		}
	}

	windowStart := today.AddDate(0, 0, -30)
	var stats store.SalesStats
	if dealerID != 0 {
		stats, err = s.store.DealerSalesStats(ctx, dealerID, 0, windowStart, today)
		if err != nil {
			s.storeError(w, err)
			return
		}
	} else {
		dealers, err := s.store.ListDealers(ctx)
		if err != nil {
			s.storeError(w, err)
			return
		}
		for _, d := range dealers {
			ds, err := s.store.DealerSalesStats(ctx, d.ID, 0, windowStart, today)
			if err != nil {
				s.storeError(w, err)
				return
			}
			stats.Demand += ds.Demand
			stats.Fulfilled += ds.Fulfilled
		}
	}

	var agingPercent, turnoverRatio float64
	fillRate := 1.0
	if totalQty > 0 {
		agingPercent = float64(agingQty) / float64(totalQty)
		turnoverRatio = stats.Fulfilled / float64(totalQty)
	}
	if stats.Demand > 0 {
		fillRate = stats.Fulfilled / stats.Demand
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_inventory_units": totalQty,
		"aging_percent":         api.Round2(agingPercent),
		"turnover_ratio":        api.Round2(turnoverRatio),
		"fill_rate":             api.Round2(fillRate),
	})
}

func (s *Server) handleDealerHealth(w http.ResponseWriter, r *http.Request) {
	scores, err := s.scorer.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to score dealers")
		log.Printf("Dealer health error: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// --- Forecast and simulation ---

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	skuID := queryID(r, "sku_id")
	region := r.URL.Query().Get("region")
	if skuID <= 0 || region == "" {
		writeError(w, http.StatusBadRequest, "sku_id and region are required")
		return
	}
	horizon := s.cfg.Forecast.DefaultHorizon
	if v := r.URL.Query().Get("horizon"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 7 || h > 120 {
			writeError(w, http.StatusBadRequest, "horizon must be between 7 and 120")
			return
		}
		horizon = h
	}

	resp, err := s.baselineFor(r.Context(), skuID, region, horizon)
	if err != nil {
		s.forecastError(w, err)
		return
	}

	out := *resp
	chart := api.ToChartData(simulate.Downsample(out.Points, s.cfg.Forecast.MaxChartPoints))
	out.Chart = &chart
	writeJSON(w, http.StatusOK, &out)
}

// baselineFor serves a baseline forecast, from cache when possible.
func (s *Server) baselineFor(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	ctx, span := otel.StartSpan(ctx, "paintops/forecast", "forecast.baseline",
		otel.ForecastAttributes(skuID, region, horizon)...)
	defer span.End()

	cached, err := s.cache.Get(ctx, skuID, region, horizon)
	if err != nil {
		log.Printf("Forecast cache read error: %v", err)
	}
	if cached != nil {
		s.metrics.ForecastCacheHits.Inc()
		span.SetAttributes(otel.AttrCacheHit.Bool(true))
		return cached, nil
	}

	start := time.Now()
	resp, err := s.provider.Baseline(ctx, skuID, region, horizon)
	if err != nil {
		if errors.Is(err, forecast.ErrBaselineTimeout) {
			s.metrics.ForecastTimeouts.Inc()
		}
		otel.RecordError(span, err, "baseline forecast failed")
		return nil, err
	}
	s.metrics.ForecastLatency.Observe(time.Since(start).Seconds())
	s.metrics.ForecastsTotal.WithLabelValues(resp.Model).Inc()
	span.SetAttributes(otel.AttrModel.String(resp.Model))

	if err := s.cache.Set(ctx, resp); err != nil {
		log.Printf("Forecast cache write error: %v", err)
	}
	return resp, nil
}

func (s *Server) forecastError(w http.ResponseWriter, err error) {
	if errors.Is(err, forecast.ErrBaselineTimeout) {
		writeError(w, http.StatusGatewayTimeout, "baseline forecast timed out, retry later")
		return
	}
	writeError(w, http.StatusInternalServerError, "forecast failed")
	log.Printf("Forecast error: %v", err)
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req api.WhatIfRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	baseline, err := s.baselineFor(r.Context(), req.SKUID, req.Region, req.Horizon)
	if err != nil {
		s.forecastError(w, err)
		return
	}

	// A model-selected baseline keeps its own level, so only the event's
	// relative shape is applied. The degraded average baseline has no level
	// worth preserving and is scaled directly.
	policy := simulate.PolicyNormalized
	if baseline.Model == "baseline-average" {
		policy = simulate.PolicyDirect
	}

	_, span := otel.StartSpan(r.Context(), "paintops/simulate", "simulate.whatif",
		otel.SimulationAttributes(req.EventTag, string(policy), req.DealerID)...)
	defer span.End()

	result := s.engine.Simulate(baseline.Points, req.PercentChange, req.EventTag, policy,
		simulate.Context{DealerID: req.DealerID})
	s.metrics.SimulationsTotal.WithLabelValues(string(policy)).Inc()

	out := *baseline
	out.Points = result.Points
	out.Explanation = result.Explanation
	chart := api.ToChartData(simulate.Downsample(out.Points, s.cfg.Forecast.MaxChartPoints))
	out.Chart = &chart

	s.recordAudit("whatif", req.SKUID, "simulate", map[string]any{
		"region":         req.Region,
		"horizon":        req.Horizon,
		"percent_change": req.PercentChange,
		"event_tag":      req.EventTag,
		"policy":         string(policy),
	})

	writeJSON(w, http.StatusOK, &out)
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("event_tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "event_tag is required")
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = d
	}
	dealerID := queryID(r, "dealer_id")

	dates := simulate.SequenceDates(days, time.Now().UTC())
	curve := s.engine.BuildCurve(tag, dates, simulate.Context{DealerID: dealerID})

	kind := "unknown"
	if profile, ok := s.engine.Catalog().Lookup(tag); ok {
		kind = string(profile.Kind)
	}
	s.metrics.CurveBuilds.WithLabelValues(kind).Inc()

	known := curve != nil
	if curve == nil {
		curve = make([]float64, len(dates))
		for i := range curve {
			curve[i] = 1
		}
	}
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = api.DateLabel(d)
	}

	writeJSON(w, http.StatusOK, api.CurveResponse{
		EventTag:    tag,
		Known:       known,
		Dates:       labels,
		Multipliers: curve,
	})
}

// --- Planning ---

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	skuID := queryID(r, "sku_id")
	if skuID <= 0 {
		writeError(w, http.StatusBadRequest, "sku_id is required")
		return
	}
	region := r.URL.Query().Get("region")

	recs, err := s.planner.Recommend(r.Context(), skuID, region)
	if err != nil {
		s.forecastError(w, err)
		return
	}
	s.metrics.TransfersPlanned.Add(float64(len(recs)))
	s.recordAudit("rebalance", skuID, "generate", map[string]any{
		"region": region,
		"count":  len(recs),
	})
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	dealerID := queryID(r, "dealer_id")

	found, err := s.alerts.Generate(r.Context(), dealerID)
	if err != nil {
		s.forecastError(w, err)
		return
	}
	for _, a := range found {
		s.metrics.AlertsEmitted.WithLabelValues(a.AlertType).Inc()
	}
	s.recordAudit("alerts", dealerID, "generate", map[string]any{"count": len(found)})
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.trail.Recent(200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audit trail")
		log.Printf("Audit read error: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) recordAudit(entityType string, entityID int64, action string, payload any) {
	if _, err := s.trail.Record(entityType, entityID, action, payload); err != nil {
		s.metrics.AuditErrors.Inc()
		log.Printf("Audit write error: %v", err)
	}
}

// --- Helpers ---

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.metrics.StoreErrors.Inc()
		writeError(w, http.StatusInternalServerError, "internal error")
		log.Printf("Store error: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryID(r *http.Request, key string) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Response encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
