// Package health scores dealers on stock turnover, inventory aging and
// stockout history so the dashboard can rank which accounts need attention.
package health

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/store"
)

const (
	salesWindowDays = 60
	agingThreshold  = 60 // days since last receipt before stock counts as aging

	turnoverWeight = 0.4
	agingWeight    = 0.3
	stockoutWeight = 0.3

	healthyFloor = 70
	atRiskFloor  = 40
)

// Scorer computes dealer health from stored inventory and sales.
type Scorer struct {
	store store.Store
	now   func() time.Time
}

func NewScorer(s store.Store) *Scorer {
	return &Scorer{store: s, now: time.Now}
}

// WithClock pins the scorer's clock, used by tests.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// ScoreAll scores every dealer, worst first.
func (s *Scorer) ScoreAll(ctx context.Context) ([]api.DealerHealth, error) {
	dealers, err := s.store.ListDealers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealers: %w", err)
	}

	out := make([]api.DealerHealth, 0, len(dealers))
	for _, d := range dealers {
		h, err := s.score(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HealthScore < out[j].HealthScore })
	return out, nil
}

func (s *Scorer) score(ctx context.Context, d api.Dealer) (api.DealerHealth, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	inventory, err := s.store.ListInventory(ctx, d.ID, 0)
	if err != nil {
		return api.DealerHealth{}, fmt.Errorf("failed to list inventory for dealer %d: %w", d.ID, err)
	}

	var totalQty, agingQty int
	for _, item := range inventory {
		totalQty += item.Quantity
		if today.Sub(item.LastReceived) >= agingThreshold*24*time.Hour {
			agingQty += item.Quantity
		}
	}

	stats, err := s.store.DealerSalesStats(ctx, d.ID, 0, today.AddDate(0, 0, -salesWindowDays), today)
	if err != nil {
		return api.DealerHealth{}, fmt.Errorf("failed to load sales stats for dealer %d: %w", d.ID, err)
	}

	var turnoverRatio, agingPercent, stockoutRate float64
	if totalQty > 0 {
		turnoverRatio = stats.Fulfilled / float64(totalQty)
		agingPercent = float64(agingQty) / float64(totalQty)
	}
	if stats.Days > 0 {
		stockoutRate = float64(stats.StockoutDays) / float64(stats.Days)
	}

	turnoverScore := math.Min(turnoverRatio/2, 1)
	agingScore := 1 - math.Min(agingPercent, 1)
	stockoutScore := 1 - math.Min(stockoutRate, 1)

	score := 100 * (turnoverWeight*turnoverScore + agingWeight*agingScore + stockoutWeight*stockoutScore)

	return api.DealerHealth{
		DealerID:      d.ID,
		DealerName:    d.Name,
		Region:        d.Region,
		HealthScore:   api.Round2(score),
		Category:      categorize(score),
		TurnoverRatio: api.Round2(turnoverRatio),
		AgingPercent:  api.Round2(agingPercent),
		StockoutRate:  api.Round2(stockoutRate),
	}, nil
}

func categorize(score float64) string {
	switch {
	case score >= healthyFloor:
		return "Healthy"
	case score >= atRiskFloor:
		return "At Risk"
	default:
		return "Critical"
	}
}
