package health

import (
	"context"
	"testing"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/store"
)

var testNow = time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

func TestScoreAll(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	healthy := &api.Dealer{Name: "Fast Mover", Region: "North"}
	atRisk := &api.Dealer{Name: "No Stock", Region: "North"}
	critical := &api.Dealer{Name: "Stale Stock", Region: "South"}
	for _, d := range []*api.Dealer{healthy, atRisk, critical} {
		if err := ms.CreateDealer(ctx, d); err != nil {
			t.Fatalf("CreateDealer: %v", err)
		}
	}
	sku := &api.SKU{Name: "Premium Emulsion 10L"}
	if err := ms.CreateSKU(ctx, sku); err != nil {
		t.Fatalf("CreateSKU: %v", err)
	}

	// Healthy: fresh stock turning over fast, no stockouts.
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: healthy.ID, SKUID: sku.ID, Quantity: 100,
		LastReceived: testNow.AddDate(0, 0, -10),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}
	// Critical: every unit aged past 60 days, nothing sold, constant stockouts.
	if err := ms.CreateInventory(ctx, &api.Inventory{
		DealerID: critical.ID, SKUID: sku.ID, Quantity: 80,
		LastReceived: testNow.AddDate(0, 0, -120),
	}); err != nil {
		t.Fatalf("CreateInventory: %v", err)
	}

	var records []api.SalesRecord
	for i := 0; i < 30; i++ {
		date := testNow.AddDate(0, 0, -i-1)
		records = append(records,
			api.SalesRecord{DealerID: healthy.ID, SKUID: sku.ID, Date: date, Demand: 8, Fulfilled: 8},
			api.SalesRecord{DealerID: critical.ID, SKUID: sku.ID, Date: date, Demand: 5, Fulfilled: 0, Stockout: true},
		)
	}
	if err := ms.AddSales(ctx, records); err != nil {
		t.Fatalf("AddSales: %v", err)
	}

	scorer := NewScorer(ms).WithClock(func() time.Time { return testNow })
	got, err := scorer.ScoreAll(ctx)
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	byID := make(map[int64]api.DealerHealth)
	for _, h := range got {
		byID[h.DealerID] = h
	}

	// 240 fulfilled over 100 units is a 2.4 turnover, capped at score 1.
	h := byID[healthy.ID]
	if h.HealthScore != 100 || h.Category != "Healthy" {
		t.Errorf("healthy dealer = %.2f %q, want 100 Healthy", h.HealthScore, h.Category)
	}
	if h.TurnoverRatio != 2.4 {
		t.Errorf("turnover = %v, want 2.4", h.TurnoverRatio)
	}

	// No inventory at all: turnover and aging are both zeroed, score 60.
	a := byID[atRisk.ID]
	if a.HealthScore != 60 || a.Category != "At Risk" {
		t.Errorf("at-risk dealer = %.2f %q, want 60 At Risk", a.HealthScore, a.Category)
	}

	// Fully aged, zero turnover, all stockout days.
	c := byID[critical.ID]
	if c.HealthScore != 0 || c.Category != "Critical" {
		t.Errorf("critical dealer = %.2f %q, want 0 Critical", c.HealthScore, c.Category)
	}
	if c.AgingPercent != 1 || c.StockoutRate != 1 {
		t.Errorf("critical metrics aging=%v stockout=%v, want 1 and 1", c.AgingPercent, c.StockoutRate)
	}

	// Worst score first.
	if got[0].DealerID != critical.ID || got[2].DealerID != healthy.ID {
		t.Errorf("order = %d,%d,%d, want critical first and healthy last",
			got[0].DealerID, got[1].DealerID, got[2].DealerID)
	}
}

func TestCategorizeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, "Healthy"},
		{70, "Healthy"},
		{69.99, "At Risk"},
		{40, "At Risk"},
		{39.99, "Critical"},
		{0, "Critical"},
	}
	for _, tc := range cases {
		if got := categorize(tc.score); got != tc.want {
			t.Errorf("categorize(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
