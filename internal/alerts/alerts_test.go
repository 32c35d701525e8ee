package alerts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/rebalance"
	"github.com/moderncolours/paintops/internal/store"
)

var testNow = time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

// flatProvider forecasts a constant daily demand for every region.
type flatProvider struct{ daily float64 }

func (p flatProvider) Baseline(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	points := make([]api.ForecastPoint, horizon)
	for i := range points {
		points[i] = api.ForecastPoint{Forecast: p.daily}
	}
	return &api.ForecastResponse{SKUID: skuID, Region: region, Horizon: horizon, Points: points}, nil
}

func newGenerator(ms *store.MemoryStore) *Generator {
	provider := flatProvider{daily: 10}
	planner := rebalance.NewPlanner(ms, provider)
	return NewGenerator(ms, provider, planner).WithClock(func() time.Time { return testNow })
}

func TestStockoutAlertReorder(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Premium Emulsion 10L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}
	dealer := &api.Dealer{Name: "Empty Shelf", Region: "North"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatalf("CreateDealer: %v", err)
	}

	var records []api.SalesRecord
	for i := 0; i < 20; i++ {
		records = append(records, api.SalesRecord{
			DealerID: dealer.ID, SKUID: sku.ID,
			Date: testNow.AddDate(0, 0, -i-1), Demand: 10, Stockout: true,
		})
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	got, err := newGenerator(ms).Generate(ctx, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 alert", len(got))
	}

	a := got[0]
	if a.AlertType != AlertStockout {
		t.Fatalf("type = %q, want %q", a.AlertType, AlertStockout)
	}
	// No other dealer holds stock, so there is nothing to transfer.
	if a.RecommendedAction != "Reorder" {
		t.Errorf("action = %q, want Reorder", a.RecommendedAction)
	}
	if a.Metrics["days_of_cover"] != 0 {
		t.Errorf("cover = %v, want 0", a.Metrics["days_of_cover"])
	}
	if a.Metrics["stockout_rate"] != 1 {
		t.Errorf("stockout rate = %v, want 1", a.Metrics["stockout_rate"])
	}
	// 20 observed days: 0.5 + 20/200 = 0.6.
	if a.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", a.Confidence)
	}
	if !strings.Contains(a.Reasoning, "Low cover") {
		t.Errorf("reasoning = %q, want low-cover wording", a.Reasoning)
	}
}

func TestStockoutAlertTransferWhenDonorExists(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Premium Emulsion 10L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}
	needy := &api.Dealer{Name: "Empty Shelf", Region: "North", Latitude: 28.6, Longitude: 77.2}
	donor := &api.Dealer{Name: "Full Warehouse", Region: "North", Latitude: 28.7, Longitude: 77.1}
	for _, d := range []*api.Dealer{needy, donor} {
		if err := ms.CreateDealer(ctx, d); err != nil {
			t.Fatalf("CreateDealer: %v", err)
		}
	}
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: donor.ID, SKUID: sku.ID, Quantity: 1000,
		LastReceived: testNow.AddDate(0, 0, -5),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	var records []api.SalesRecord
	for i := 0; i < 20; i++ {
		date := testNow.AddDate(0, 0, -i-1)
		records = append(records,
			api.SalesRecord{DealerID: needy.ID, SKUID: sku.ID, Date: date, Demand: 10, Stockout: true},
			api.SalesRecord{DealerID: donor.ID, SKUID: sku.ID, Date: date, Demand: 10, Fulfilled: 10},
		)
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	got, err := newGenerator(ms).Generate(ctx, needy.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 alert", len(got))
	}
	if got[0].RecommendedAction != "Transfer" {
		t.Errorf("action = %q, want Transfer when a donor can cover", got[0].RecommendedAction)
	}
}

func TestDeadStockAlert(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Metallic Finish 1L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}
	dealer := &api.Dealer{Name: "Stale Stock", Region: "South"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatalf("CreateDealer: %v", err)
	}
	// Large, old stock barely selling: plenty of cover but aging fast.
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: dealer.ID, SKUID: sku.ID, Quantity: 500,
		LastReceived: testNow.AddDate(0, 0, -80),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	var records []api.SalesRecord
	for i := 0; i < 30; i++ {
		records = append(records, api.SalesRecord{
			DealerID: dealer.ID, SKUID: sku.ID,
			Date: testNow.AddDate(0, 0, -i-1), Demand: 1, Fulfilled: 1,
		})
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	got, err := newGenerator(ms).Generate(ctx, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 alert, got %+v", len(got), got)
	}

	a := got[0]
	if a.AlertType != AlertDeadStock {
		t.Fatalf("type = %q, want %q", a.AlertType, AlertDeadStock)
	}
	if a.RecommendedAction != "Hold" {
		t.Errorf("action = %q, want Hold", a.RecommendedAction)
	}
	// 80 of 90 aging days.
	if a.Metrics["aging_percent"] != 0.89 {
		t.Errorf("aging = %v, want 0.89", a.Metrics["aging_percent"])
	}
	// 30 observed days: 0.5 + 30/200 - 0.05 = 0.6.
	if a.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", a.Confidence)
	}
}

func TestHealthyPairNoAlerts(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	sku := &api.SKU{Name: "Primer 5L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}
	dealer := &api.Dealer{Name: "Balanced", Region: "West"}
	if err := ms.CreateDealer(ctx, dealer); err != nil {
		t.Fatalf("CreateDealer: %v", err)
	}
	// Fresh stock with good cover and turnover.
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: dealer.ID, SKUID: sku.ID, Quantity: 100,
		LastReceived: testNow.AddDate(0, 0, -5),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	var records []api.SalesRecord
	for i := 0; i < 30; i++ {
		records = append(records, api.SalesRecord{
			DealerID: dealer.ID, SKUID: sku.ID,
			Date: testNow.AddDate(0, 0, -i-1), Demand: 10, Fulfilled: 10,
		})
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	got, err := newGenerator(ms).Generate(ctx, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want no alerts, got %+v", len(got), got)
	}
}
