package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/store"
)

// Fixed seed keeps demo data reproducible across machines.
const seedValue = 42

var regionFactors = map[string]float64{
	"North":   1.1,
	"South":   0.95,
	"East":    0.9,
	"West":    1.0,
	"Central": 1.0,
}

var seedRegions = []string{"North", "South", "East", "West", "Central"}

// seasonalFactor mirrors the paint market's yearly cycle: festival-season
// highs in October/November, a spring bump, a monsoon slump.
func seasonalFactor(day time.Time) float64 {
	switch day.Month() {
	case time.October, time.November:
		return 1.3
	case time.March, time.April:
		return 1.15
	case time.June, time.July, time.August:
		return 0.9
	default:
		return 1.0
	}
}

type seedDealer struct {
	name   string
	region string
	city   string
	lat    float64
	lon    float64
}

type seedSKU struct {
	name        string
	colorFamily string
	sizeLtr     float64
	unitCost    int64
	unitPrice   int64
}

var seedDealers = []seedDealer{
	{"Modern Colours Delhi", "North", "Delhi", 28.61, 77.20},
	{"Modern Colours Jaipur", "North", "Jaipur", 26.91, 75.79},
	{"Modern Colours Chandigarh", "North", "Chandigarh", 30.74, 76.79},
	{"Modern Colours Mumbai", "West", "Mumbai", 19.07, 72.88},
	{"Modern Colours Pune", "West", "Pune", 18.52, 73.85},
	{"Modern Colours Ahmedabad", "West", "Ahmedabad", 23.02, 72.57},
	{"Modern Colours Bengaluru", "South", "Bengaluru", 12.97, 77.59},
	{"Modern Colours Chennai", "South", "Chennai", 13.08, 80.27},
	{"Modern Colours Kochi", "South", "Kochi", 9.93, 76.27},
	{"Modern Colours Kolkata", "East", "Kolkata", 22.57, 88.36},
	{"Modern Colours Guwahati", "East", "Guwahati", 26.14, 91.73},
	{"Modern Colours Lucknow", "Central", "Lucknow", 26.85, 80.95},
	{"Modern Colours Indore", "Central", "Indore", 22.72, 75.86},
}

var seedSKUs = []seedSKU{
	{"Interior Emulsion 10L - Ivory", "Warm", 10, 950, 1350},
	{"Exterior Weatherproof 20L - White", "Neutral", 20, 1800, 2600},
	{"Premium Matte 5L - Sand", "Warm", 5, 600, 950},
	{"Silk Shine 10L - Pearl", "Cool", 10, 1150, 1650},
	{"Acrylic Distemper 20L - Cream", "Neutral", 20, 1400, 2100},
	{"Roof Coat 10L - Terracotta", "Earth", 10, 1000, 1500},
}

// runSeed populates an empty store. Returns false without touching anything
// when dealers already exist.
func runSeed(ctx context.Context, st store.Store, days int) (bool, error) {
	existing, err := st.ListDealers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check existing dealers: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	rng := rand.New(rand.NewSource(seedValue))
	today := time.Now().UTC().Truncate(24 * time.Hour)

	dealers := make([]api.Dealer, len(seedDealers))
	for i, sd := range seedDealers {
		d := api.Dealer{Name: sd.name, Region: sd.region, City: sd.city, Latitude: sd.lat, Longitude: sd.lon}
		if err := st.CreateDealer(ctx, &d); err != nil {
			return false, fmt.Errorf("failed to create dealer %s: %w", sd.name, err)
		}
		dealers[i] = d
	}

	skus := make([]api.SKU, len(seedSKUs))
	for i, ss := range seedSKUs {
		sku := api.SKU{
			Name:        ss.name,
			ColorFamily: ss.colorFamily,
			SizeLtr:     ss.sizeLtr,
			UnitCost:    decimal.NewFromInt(ss.unitCost),
			UnitPrice:   decimal.NewFromInt(ss.unitPrice),
		}
		if err := st.CreateSKU(ctx, &sku); err != nil {
			return false, fmt.Errorf("failed to create sku %s: %w", ss.name, err)
		}
		skus[i] = sku
	}

	if err := seedInventory(ctx, st, rng, today, dealers, skus); err != nil {
		return false, err
	}
	if err := seedSales(ctx, st, rng, today, days, dealers, skus); err != nil {
		return false, err
	}
	if err := seedSignals(ctx, st, rng, today, skus); err != nil {
		return false, err
	}
	return true, nil
}

// seedInventory gives every dealer/SKU pair a stock position, with a few
// engineered extremes so the dashboard has stories to tell on day one.
func seedInventory(ctx context.Context, st store.Store, rng *rand.Rand, today time.Time, dealers []api.Dealer, skus []api.SKU) error {
	for _, dealer := range dealers {
		for _, sku := range skus {
			quantity := 40 + rng.Intn(381)
			lastReceived := today.AddDate(0, 0, -(5 + rng.Intn(116)))

			switch {
			case dealer.Name == "Modern Colours Delhi" && sku.Name == "Interior Emulsion 10L - Ivory":
				// Near-stockout at the flagship store.
				quantity = 6
				lastReceived = today.AddDate(0, 0, -12)
			case dealer.Name == "Modern Colours Mumbai" && sku.Name == "Interior Emulsion 10L - Ivory":
				// Obvious donor for rebalancing against Delhi.
				quantity = 620
				lastReceived = today.AddDate(0, 0, -75)
			case dealer.Name == "Modern Colours Chennai" && sku.Name == "Exterior Weatherproof 20L - White":
				// Dead stock mountain.
				quantity = 3000
				lastReceived = today.AddDate(0, 0, -140)
			case dealer.Name == "Modern Colours Bengaluru" && sku.Name == "Premium Matte 5L - Sand":
				quantity = 8
				lastReceived = today.AddDate(0, 0, -18)
			}

			inv := api.Inventory{
				DealerID:     dealer.ID,
				SKUID:        sku.ID,
				Quantity:     quantity,
				LastReceived: lastReceived,
			}
			if err := st.CreateInventory(ctx, &inv); err != nil {
				return fmt.Errorf("failed to create inventory: %w", err)
			}
		}
	}
	return nil
}

func seedSales(ctx context.Context, st store.Store, rng *rand.Rand, today time.Time, days int, dealers []api.Dealer, skus []api.SKU) error {
	skuBase := make(map[int64]float64, len(skus))
	for _, sku := range skus {
		skuBase[sku.ID] = float64(20 + rng.Intn(36))
	}

	var records []api.SalesRecord
	for offset := 0; offset < days; offset++ {
		day := today.AddDate(0, 0, -(days - offset))
		season := seasonalFactor(day)
		for _, dealer := range dealers {
			regionFactor := regionFactors[dealer.Region]
			for _, sku := range skus {
				base := skuBase[sku.ID] * regionFactor * season
				demand := math.Max(5, base+rng.NormFloat64()*6)
				fulfilRatio := 0.78 + rng.Float64()*0.22
				fulfilled := demand * fulfilRatio

				records = append(records, api.SalesRecord{
					DealerID:  dealer.ID,
					SKUID:     sku.ID,
					Date:      day,
					Demand:    api.Round2(demand),
					Fulfilled: api.Round2(fulfilled),
					Stockout:  fulfilled < demand*0.92,
				})
			}
		}
	}
	if err := st.AddSales(ctx, records); err != nil {
		return fmt.Errorf("failed to add sales history: %w", err)
	}
	return nil
}

func seedSignals(ctx context.Context, st store.Store, rng *rand.Rand, today time.Time, skus []api.SKU) error {
	var signals []api.BuyerSignal
	for offset := 0; offset < 60; offset++ {
		day := today.AddDate(0, 0, -(60 - offset))
		season := seasonalFactor(day)
		for _, region := range seedRegions {
			for _, sku := range skus {
				interest := 50 + (season-1)*40 + rng.NormFloat64()*6
				interest = math.Max(10, math.Min(95, interest))

				spike := 0.0
				tag := ""
				switch {
				case day.Month() == time.November && rng.Float64() < 0.2:
					spike, tag = 0.4, "diwali"
				case day.Month() == time.March && rng.Float64() < 0.15:
					spike, tag = 0.3, "holi"
				case rng.Float64() < 0.05:
					spike, tag = 0.25, "construction-boom"
				}

				signals = append(signals, api.BuyerSignal{
					Region:         region,
					SKUID:          sku.ID,
					Date:           day,
					SearchInterest: api.Round2(interest),
					DemandSpike:    spike,
					EventTag:       tag,
				})
			}
		}
	}

	// Recent demo signals so the forecast explanations have tags to cite.
	demoDates := []time.Time{
		today.AddDate(0, 0, -5),
		today.AddDate(0, 0, -12),
		today.AddDate(0, 0, -20),
		today.AddDate(0, 0, -28),
	}
	demoTags := []string{"diwali", "holi", "construction-boom", "monsoon"}
	for i, sku := range skus {
		signals = append(signals, api.BuyerSignal{
			Region:         "North",
			SKUID:          sku.ID,
			Date:           demoDates[i%len(demoDates)],
			SearchInterest: 78.0,
			DemandSpike:    0.35,
			EventTag:       demoTags[i%len(demoTags)],
		})
	}

	if err := st.AddBuyerSignals(ctx, signals); err != nil {
		return fmt.Errorf("failed to add buyer signals: %w", err)
	}
	return nil
}
