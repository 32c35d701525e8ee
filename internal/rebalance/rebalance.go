// Package rebalance plans stock transfers from overstocked dealers to
// dealers at stockout risk, priced by road distance.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/forecast"
	"github.com/moderncolours/paintops/internal/store"
)

const (
	receiverCoverDays  = 7  // below this a dealer needs stock
	targetCoverDays    = 14 // transfers top receivers up to this
	overstockCoverDays = 35 // above this a dealer can donate

	planningHorizon = 14
)

// CostPerKm is the flat logistics rate in rupees per kilometre.
var CostPerKm = decimal.NewFromFloat(2.5)

// Planner recommends transfers for a SKU, optionally restricted to a region.
type Planner struct {
	store    store.Store
	provider forecast.Provider
}

func NewPlanner(s store.Store, p forecast.Provider) *Planner {
	return &Planner{store: s, provider: p}
}

type dealerCover struct {
	dealer   api.Dealer
	quantity int
	daily    float64
	cover    float64
}

// Recommend returns transfer recommendations sorted best score first. An
// unknown SKU or an empty dealer set yields an empty plan, not an error.
func (p *Planner) Recommend(ctx context.Context, skuID int64, region string) ([]api.TransferRecommendation, error) {
	sku, err := p.store.GetSKU(ctx, skuID)
	if errors.Is(err, store.ErrNotFound) {
		return []api.TransferRecommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sku: %w", err)
	}

	dealers, err := p.store.ListDealers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealers: %w", err)
	}
	if region != "" {
		filtered := dealers[:0]
		for _, d := range dealers {
			if strings.EqualFold(d.Region, region) {
				filtered = append(filtered, d)
			}
		}
		dealers = filtered
	}
	if len(dealers) == 0 {
		return []api.TransferRecommendation{}, nil
	}

	regionDaily, err := p.regionDailyRates(ctx, skuID, dealers)
	if err != nil {
		return nil, err
	}

	metrics, err := p.coverMetrics(ctx, skuID, dealers, regionDaily)
	if err != nil {
		return nil, err
	}

	var receivers, donors []dealerCover
	for _, m := range metrics {
		switch {
		case m.cover < receiverCoverDays:
			receivers = append(receivers, m)
		case m.cover > overstockCoverDays:
			donors = append(donors, m)
		}
	}

	recs := []api.TransferRecommendation{}
	for _, recv := range receivers {
		need := int(math.Max(0, targetCoverDays*recv.daily-float64(recv.quantity)))
		if need <= 0 {
			continue
		}
		for _, donor := range donors {
			excess := int(math.Max(0, float64(donor.quantity)-overstockCoverDays*donor.daily))
			if excess <= 0 {
				continue
			}

			qty := need
			if excess < qty {
				qty = excess
			}
			distance := haversineKm(donor.dealer.Latitude, donor.dealer.Longitude,
				recv.dealer.Latitude, recv.dealer.Longitude)
			cost := CostPerKm.Mul(decimal.NewFromFloat(distance)).Round(2)
			costF, _ := cost.Float64()
			score := (recv.cover + 1) / (costF + 1)

			recs = append(recs, api.TransferRecommendation{
				FromDealerID:  donor.dealer.ID,
				FromDealer:    donor.dealer.Name,
				ToDealerID:    recv.dealer.ID,
				ToDealer:      recv.dealer.Name,
				SKUID:         skuID,
				SKUName:       sku.Name,
				Quantity:      qty,
				DistanceKm:    api.Round1(distance),
				LogisticsCost: cost,
				Score:         math.Round(score*1000) / 1000,
				Explanation: fmt.Sprintf(
					"Receiver cover %.1f days; donor cover %.1f days. Distance %.0f km; estimated logistics cost ₹%s.",
					recv.cover, donor.cover, distance, cost.StringFixed(0)),
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs, nil
}

// regionDailyRates forecasts the average daily demand per region covered by
// the dealer set, floored at one unit.
func (p *Planner) regionDailyRates(ctx context.Context, skuID int64, dealers []api.Dealer) (map[string]float64, error) {
	rates := make(map[string]float64)
	for _, d := range dealers {
		if _, ok := rates[d.Region]; ok {
			continue
		}
		resp, err := p.provider.Baseline(ctx, skuID, d.Region, planningHorizon)
		if err != nil {
			return nil, fmt.Errorf("failed to forecast region %s: %w", d.Region, err)
		}
		sum := 0.0
		for _, pt := range resp.Points {
			sum += pt.Forecast
		}
		rates[d.Region] = math.Max(sum/float64(resp.Horizon), 1)
	}
	return rates, nil
}

// coverMetrics apportions each region's forecast daily rate to its dealers
// by historical demand share and converts stock on hand into days of cover.
func (p *Planner) coverMetrics(ctx context.Context, skuID int64, dealers []api.Dealer, regionDaily map[string]float64) ([]dealerCover, error) {
	demand := make(map[int64]float64, len(dealers))
	regionTotal := make(map[string]float64)
	for _, d := range dealers {
		total, err := p.store.DealerDemandTotal(ctx, d.ID, skuID)
		if err != nil {
			return nil, fmt.Errorf("failed to load demand for dealer %d: %w", d.ID, err)
		}
		demand[d.ID] = total
		regionTotal[d.Region] += total
	}

	out := make([]dealerCover, 0, len(dealers))
	for _, d := range dealers {
		inv, err := p.store.ListInventory(ctx, d.ID, skuID)
		if err != nil {
			return nil, fmt.Errorf("failed to load inventory for dealer %d: %w", d.ID, err)
		}
		quantity := 0
		for _, item := range inv {
			quantity += item.Quantity
		}

		share := 1 / float64(len(dealers))
		if regionTotal[d.Region] > 0 {
			share = demand[d.ID] / regionTotal[d.Region]
		}
		daily := math.Max(regionDaily[d.Region]*share, 1)

		out = append(out, dealerCover{
			dealer:   d,
			quantity: quantity,
			daily:    daily,
			cover:    float64(quantity) / daily,
		})
	}
	return out, nil
}

const earthRadiusKm = 6371

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
