package rebalance

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/store"
)

// flatProvider forecasts a constant daily demand for every region.
type flatProvider struct{ daily float64 }

func (p flatProvider) Baseline(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	points := make([]api.ForecastPoint, horizon)
	for i := range points {
		points[i] = api.ForecastPoint{Forecast: p.daily}
	}
	return &api.ForecastResponse{SKUID: skuID, Region: region, Horizon: horizon, Points: points}, nil
}

func seedPair(t *testing.T) (*store.MemoryStore, *api.SKU, *api.Dealer, *api.Dealer) {
	t.Helper()
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Weather Shield 20L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}

	receiver := &api.Dealer{Name: "Empty Shelf", Region: "North", Latitude: 28.6, Longitude: 77.2}
	donor := &api.Dealer{Name: "Full Warehouse", Region: "North", Latitude: 28.7, Longitude: 77.1}
	for _, d := range []*api.Dealer{receiver, donor} {
		if err := ms.CreateDealer(ctx, d); err != nil {
			t.Fatalf("CreateDealer: %v", err)
		}
	}

	// Equal historical demand so the regional rate splits evenly.
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	var records []api.SalesRecord
	for i := 0; i < 10; i++ {
		date := base.AddDate(0, 0, i)
		records = append(records,
			api.SalesRecord{DealerID: receiver.ID, SKUID: sku.ID, Date: date, Demand: 10},
			api.SalesRecord{DealerID: donor.ID, SKUID: sku.ID, Date: date, Demand: 10},
		)
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: donor.ID, SKUID: sku.ID, Quantity: 1000, LastReceived: base,
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	return ms, sku, receiver, donor
}

func TestRecommendTransfers(t *testing.T) {
	ms, sku, receiver, donor := seedPair(t)
	planner := NewPlanner(ms, flatProvider{daily: 10})

	recs, err := planner.Recommend(context.Background(), sku.ID, "")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1 recommendation", len(recs))
	}

	rec := recs[0]
	if rec.FromDealerID != donor.ID || rec.ToDealerID != receiver.ID {
		t.Errorf("direction = %d -> %d, want %d -> %d",
			rec.FromDealerID, rec.ToDealerID, donor.ID, receiver.ID)
	}
	// Per-dealer daily is 10 * 0.5 share = 5; receiver has nothing, so it
	// needs 14 days of cover: 70 units.
	if rec.Quantity != 70 {
		t.Errorf("quantity = %d, want 70", rec.Quantity)
	}
	if rec.SKUName != sku.Name {
		t.Errorf("sku name = %q, want %q", rec.SKUName, sku.Name)
	}
	if rec.DistanceKm <= 0 || rec.DistanceKm > 30 {
		t.Errorf("distance = %v km, want a short hop across the city", rec.DistanceKm)
	}
	wantCost := 2.5 * rec.DistanceKm
	gotCost, _ := rec.LogisticsCost.Float64()
	if math.Abs(gotCost-wantCost) > 0.5 {
		t.Errorf("cost = %v, want ~%v", gotCost, wantCost)
	}
	if rec.Score <= 0 {
		t.Errorf("score = %v, want positive", rec.Score)
	}
	if !strings.Contains(rec.Explanation, "₹") {
		t.Errorf("explanation should quote the rupee cost: %q", rec.Explanation)
	}
}

func TestRecommendRegionFilter(t *testing.T) {
	ms, sku, _, _ := seedPair(t)
	planner := NewPlanner(ms, flatProvider{daily: 10})

	recs, err := planner.Recommend(context.Background(), sku.ID, "South")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d, want 0 for a region with no dealers", len(recs))
	}
}

func TestRecommendUnknownSKU(t *testing.T) {
	ms, _, _, _ := seedPair(t)
	planner := NewPlanner(ms, flatProvider{daily: 10})

	recs, err := planner.Recommend(context.Background(), 999, "")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d, want 0 for unknown sku", len(recs))
	}
}

func TestRecommendNoImbalance(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Primer 5L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}
	d := &api.Dealer{Name: "Balanced", Region: "West"}
	if err := ms.CreateDealer(ctx, d); err != nil {
		t.Fatalf("CreateDealer: %v", err)
	}
	// 100 units at 10/day regional rate is 10 days of cover: neither a
	// receiver nor a donor.
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: d.ID, SKUID: sku.ID, Quantity: 100, LastReceived: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}

	planner := NewPlanner(ms, flatProvider{daily: 10})
	recs, err := planner.Recommend(ctx, sku.ID, "")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d, want 0 when stock is balanced", len(recs))
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Delhi to Mumbai is roughly 1150 km as the crow flies.
	got := haversineKm(28.61, 77.21, 19.08, 72.88)
	if got < 1100 || got > 1200 {
		t.Fatalf("distance = %v km, want ~1150", got)
	}
	if haversineKm(28.61, 77.21, 28.61, 77.21) != 0 {
		t.Fatalf("distance to self should be 0")
	}
}
