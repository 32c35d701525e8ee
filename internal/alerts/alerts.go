// Package alerts scans every dealer/SKU pair for stockout and dead-stock
// risk and recommends an action for each finding.
package alerts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/forecast"
	"github.com/moderncolours/paintops/internal/rebalance"
	"github.com/moderncolours/paintops/internal/store"
)

const (
	AlertStockout  = "Stockout Risk"
	AlertDeadStock = "Dead Stock Risk"
)

const (
	salesWindowDays = 60
	lowCoverDays    = 7
	agingHorizon    = 90 // days since last receipt at which stock is fully aged
	planningHorizon = 14
)

// Generator produces inventory alerts from stored sales and forecasts.
type Generator struct {
	store    store.Store
	provider forecast.Provider
	planner  *rebalance.Planner
	now      func() time.Time
}

func NewGenerator(s store.Store, p forecast.Provider, planner *rebalance.Planner) *Generator {
	return &Generator{store: s, provider: p, planner: planner, now: time.Now}
}

// WithClock pins the generator's clock, used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate scans dealers (all of them when dealerID is zero) against every
// SKU and returns the alerts found.
func (g *Generator) Generate(ctx context.Context, dealerID int64) ([]api.AlertRecommendation, error) {
	dealers, err := g.store.ListDealers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealers: %w", err)
	}
	if dealerID != 0 {
		filtered := dealers[:0]
		for _, d := range dealers {
			if d.ID == dealerID {
				filtered = append(filtered, d)
			}
		}
		dealers = filtered
	}

	skus, err := g.store.ListSKUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}

	today := g.now().UTC().Truncate(24 * time.Hour)
	windowStart := today.AddDate(0, 0, -salesWindowDays)

	// Regional daily rates and transfer plans are shared across dealers, so
	// compute each at most once per sku/region pair.
	dailyRates := make(map[string]float64)
	transferPlans := make(map[string][]api.TransferRecommendation)

	alerts := []api.AlertRecommendation{}
	for _, dealer := range dealers {
		for _, sku := range skus {
			finding, err := g.evaluate(ctx, dealer, sku, today, windowStart, dailyRates, transferPlans, len(dealers))
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, finding...)
		}
	}
	return alerts, nil
}

func (g *Generator) evaluate(ctx context.Context, dealer api.Dealer, sku api.SKU, today, windowStart time.Time,
	dailyRates map[string]float64, transferPlans map[string][]api.TransferRecommendation, dealerCount int) ([]api.AlertRecommendation, error) {

	inv, err := g.store.ListInventory(ctx, dealer.ID, sku.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	quantity := 0
	var lastReceived time.Time
	for _, item := range inv {
		quantity += item.Quantity
		if item.LastReceived.After(lastReceived) {
			lastReceived = item.LastReceived
		}
	}

	stats, err := g.store.DealerSalesStats(ctx, dealer.ID, sku.ID, windowStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales stats: %w", err)
	}

	var turnoverRatio, stockoutRate float64
	if quantity > 0 {
		turnoverRatio = stats.Fulfilled / float64(quantity)
	}
	if stats.Days > 0 {
		stockoutRate = float64(stats.StockoutDays) / float64(stats.Days)
	}

	rateKey := fmt.Sprintf("%d|%s", sku.ID, dealer.Region)
	regionDaily, ok := dailyRates[rateKey]
	if !ok {
		resp, err := g.provider.Baseline(ctx, sku.ID, dealer.Region, planningHorizon)
		if err != nil {
			return nil, fmt.Errorf("failed to forecast region %s: %w", dealer.Region, err)
		}
		sum := 0.0
		for _, pt := range resp.Points {
			sum += pt.Forecast
		}
		regionDaily = math.Max(sum/float64(resp.Horizon), 1)
		dailyRates[rateKey] = regionDaily
	}

	regionTotal, err := g.store.RegionDemandTotal(ctx, dealer.Region, sku.ID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load region demand: %w", err)
	}
	share := 1 / math.Max(1, float64(dealerCount))
	if regionTotal > 0 {
		share = stats.Demand / regionTotal
	}
	dealerDaily := math.Max(regionDaily*share, 1)
	daysCover := float64(quantity) / dealerDaily

	agingPercent := 0.0
	if len(inv) > 0 {
		age := today.Sub(lastReceived).Hours() / 24
		agingPercent = math.Min(age/agingHorizon, 1)
	}

	metrics := map[string]float64{
		"days_of_cover":  api.Round2(daysCover),
		"turnover_ratio": api.Round2(turnoverRatio),
		"stockout_rate":  api.Round2(stockoutRate),
		"aging_percent":  api.Round2(agingPercent),
	}
	confidence := math.Max(0.55, math.Min(0.9, 0.5+float64(stats.Days)/200))

	var out []api.AlertRecommendation

	if daysCover < lowCoverDays {
		planKey := rateKey
		plan, ok := transferPlans[planKey]
		if !ok {
			plan, err = g.planner.Recommend(ctx, sku.ID, dealer.Region)
			if err != nil {
				return nil, fmt.Errorf("failed to plan transfers: %w", err)
			}
			transferPlans[planKey] = plan
		}
		action := "Reorder"
		for _, t := range plan {
			if t.ToDealerID == dealer.ID {
				action = "Transfer"
				break
			}
		}
		out = append(out, api.AlertRecommendation{
			DealerID:          dealer.ID,
			DealerName:        dealer.Name,
			SKUID:             sku.ID,
			SKUName:           sku.Name,
			AlertType:         AlertStockout,
			RecommendedAction: action,
			Confidence:        api.Round2(confidence),
			Reasoning: fmt.Sprintf(
				"Low cover (%.1f days) and stockout rate %.2f. Suggested action: %s.",
				daysCover, stockoutRate, action),
			Metrics: metrics,
		})
	}

	if agingPercent > 0.4 && turnoverRatio < 1 {
		out = append(out, api.AlertRecommendation{
			DealerID:          dealer.ID,
			DealerName:        dealer.Name,
			SKUID:             sku.ID,
			SKUName:           sku.Name,
			AlertType:         AlertDeadStock,
			RecommendedAction: "Hold",
			Confidence:        api.Round2(confidence - 0.05),
			Reasoning: fmt.Sprintf(
				"High aging inventory (%.0f%%) with low turnover (%.2f). Recommended action: Hold or promote through local campaigns.",
				agingPercent*100, turnoverRatio),
			Metrics: metrics,
		})
	}
	return out, nil
}
