package main

import (
	"context"
	"testing"

	"github.com/moderncolours/paintops/internal/store"
)

func TestRunSeed(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	seeded, err := runSeed(ctx, ms, 30)
	if err != nil {
		t.Fatalf("runSeed: %v", err)
	}
	if !seeded {
		t.Fatalf("empty store should seed")
	}

	dealers, err := ms.ListDealers(ctx)
	if err != nil {
		t.Fatalf("ListDealers: %v", err)
	}
	if len(dealers) != 13 {
		t.Errorf("dealers = %d, want 13", len(dealers))
	}

	skus, err := ms.ListSKUs(ctx)
	if err != nil {
		t.Fatalf("ListSKUs: %v", err)
	}
	if len(skus) != 6 {
		t.Errorf("skus = %d, want 6", len(skus))
	}

	inventory, err := ms.ListInventory(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if len(inventory) != 13*6 {
		t.Errorf("inventory rows = %d, want %d", len(inventory), 13*6)
	}

	regions, err := ms.Regions(ctx)
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 5 {
		t.Errorf("regions = %d, want 5", len(regions))
	}

	// Engineered near-stockout: Delhi flagship holds 6 units of the first SKU.
	var delhiID int64
	for _, d := range dealers {
		if d.Name == "Modern Colours Delhi" {
			delhiID = d.ID
		}
	}
	items, err := ms.ListInventory(ctx, delhiID, skus[0].ID)
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 6 {
		t.Errorf("Delhi flagship stock = %+v, want a single 6-unit position", items)
	}

	// Every region/SKU pair has a demand series covering the window.
	series, err := ms.RegionSeries(ctx, skus[0].ID, "North")
	if err != nil {
		t.Fatalf("RegionSeries: %v", err)
	}
	if len(series) != 30 {
		t.Errorf("series days = %d, want 30", len(series))
	}
	for _, pt := range series {
		if pt.Demand <= 0 {
			t.Fatalf("non-positive demand on %v", pt.Date)
		}
	}
}

func TestRunSeedSkipsNonEmptyStore(t *testing.T) {
	ms := store.NewMemoryStore("")
	ctx := context.Background()

	if _, err := runSeed(ctx, ms, 10); err != nil {
		t.Fatalf("runSeed: %v", err)
	}
	seeded, err := runSeed(ctx, ms, 10)
	if err != nil {
		t.Fatalf("second runSeed: %v", err)
	}
	if seeded {
		t.Fatalf("non-empty store should not reseed")
	}

	dealers, _ := ms.ListDealers(ctx)
	if len(dealers) != 13 {
		t.Fatalf("dealers = %d after skip, want 13", len(dealers))
	}
}
