package api

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dealer is a distribution partner in one of the sales regions.
type Dealer struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SKU is a sellable paint product.
type SKU struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ColorFamily string          `json:"color_family"`
	SizeLtr     float64         `json:"size_ltr"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Inventory is the on-hand stock of one SKU at one dealer.
type Inventory struct {
	ID           int64     `json:"id"`
	DealerID     int64     `json:"dealer_id"`
	SKUID        int64     `json:"sku_id"`
	Quantity     int       `json:"quantity"`
	LastReceived time.Time `json:"last_received_date"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
}

// SalesRecord is one day of demand/fulfilment at a dealer for a SKU.
type SalesRecord struct {
	ID        int64     `json:"id"`
	DealerID  int64     `json:"dealer_id"`
	SKUID     int64     `json:"sku_id"`
	Date      time.Time `json:"date"`
	Demand    float64   `json:"demand"`
	Fulfilled float64   `json:"fulfilled"`
	Stockout  bool      `json:"stockout"`
}

// BuyerSignal is an external demand signal (search interest, spike index)
// observed for a SKU in a region on a given day.
type BuyerSignal struct {
	ID             int64     `json:"id"`
	Region         string    `json:"region"`
	SKUID          int64     `json:"sku_id"`
	Date           time.Time `json:"date"`
	SearchInterest float64   `json:"search_interest"`
	DemandSpike    float64   `json:"demand_spike"`
	EventTag       string    `json:"event_tag,omitempty"`
}

// ForecastPoint is one horizon day of a demand forecast. The baseline is
// expected to satisfy Lower <= Forecast <= Upper; scaled outputs are not
// re-clamped.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Forecast float64   `json:"forecast"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}

// ForecastResponse is the full output of the forecast provider, and also the
// shape of a what-if simulation result (same passthrough fields, adjusted
// points, rewritten explanation).
type ForecastResponse struct {
	SKUID            int64           `json:"sku_id"`
	Region           string          `json:"region"`
	Model            string          `json:"model"`
	Horizon          int             `json:"horizon"`
	Confidence       float64         `json:"confidence"`
	Explanation      string          `json:"explanation"`
	SignalAdjustment float64         `json:"signal_adjustment"`
	Points           []ForecastPoint `json:"points"`

	// Chart is the downsampled render-ready view of Points. Populated by
	// the HTTP layer, never cached.
	Chart *ChartData `json:"chart,omitempty"`
}

// WhatIfRequest asks for an adjusted forecast under a percent shift and an
// optional named demand event.
type WhatIfRequest struct {
	SKUID         int64   `json:"sku_id"`
	Region        string  `json:"region"`
	Horizon       int     `json:"horizon"`
	PercentChange float64 `json:"percent_change"`
	EventTag      string  `json:"event_tag,omitempty"`
	DealerID      int64   `json:"dealer_id,omitempty"`
}

// Validate performs basic structural validation.
func (r *WhatIfRequest) Validate() error {
	if r.SKUID <= 0 {
		return fmt.Errorf("sku_id must be positive")
	}
	if strings.TrimSpace(r.Region) == "" {
		return fmt.Errorf("region is required")
	}
	if r.Horizon == 0 {
		r.Horizon = 30
	}
	if r.Horizon < 7 || r.Horizon > 120 {
		return fmt.Errorf("horizon must be in [7, 120], got %d", r.Horizon)
	}
	return nil
}

// CurveResponse is the standalone multiplier curve of an event profile,
// for diagnostics and shape visualization.
type CurveResponse struct {
	EventTag    string    `json:"event_tag"`
	Known       bool      `json:"known"`
	Dates       []string  `json:"dates"`
	Multipliers []float64 `json:"multipliers"`
}

// DealerHealth is the composite health score of a dealer.
type DealerHealth struct {
	DealerID      int64   `json:"dealer_id"`
	DealerName    string  `json:"dealer_name"`
	Region        string  `json:"region"`
	HealthScore   float64 `json:"health_score"`
	Category      string  `json:"category"`
	TurnoverRatio float64 `json:"turnover_ratio"`
	AgingPercent  float64 `json:"aging_percent"`
	StockoutRate  float64 `json:"stockout_rate"`
}

// TransferRecommendation proposes moving stock from an overstocked dealer to
// one at stockout risk.
type TransferRecommendation struct {
	FromDealerID  int64           `json:"from_dealer_id"`
	FromDealer    string          `json:"from_dealer"`
	ToDealerID    int64           `json:"to_dealer_id"`
	ToDealer      string          `json:"to_dealer"`
	SKUID         int64           `json:"sku_id"`
	SKUName       string          `json:"sku_name"`
	Quantity      int             `json:"quantity"`
	DistanceKm    float64         `json:"distance_km"`
	LogisticsCost decimal.Decimal `json:"logistics_cost"`
	Score         float64         `json:"score"`
	Explanation   string          `json:"explanation"`
}

// AlertRecommendation flags a dealer/SKU pair needing action.
type AlertRecommendation struct {
	DealerID          int64              `json:"dealer_id"`
	DealerName        string             `json:"dealer_name"`
	SKUID             int64              `json:"sku_id"`
	SKUName           string             `json:"sku_name"`
	AlertType         string             `json:"alert_type"`
	RecommendedAction string             `json:"recommended_action"`
	Confidence        float64            `json:"confidence"`
	Reasoning         string             `json:"reasoning"`
	Metrics           map[string]float64 `json:"metrics"`
}

// SummaryResponse is the dashboard headline card.
type SummaryResponse struct {
	TotalInventoryUnits int `json:"total_inventory_units"`
	TotalSKUs           int `json:"total_skus"`
	TotalDealers        int `json:"total_dealers"`
	StockoutRiskCount   int `json:"stockout_risk_count"`
	DeadStockRiskCount  int `json:"dead_stock_risk_count"`
}

// AuditEntry is one record of the append-only audit trail.
type AuditEntry struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	Payload    string    `json:"payload"`
}

// ChartDataset is one renderable series.
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// ChartData is the structure the rendering layer consumes directly.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// DateLabel formats a time as the canonical YYYY-MM-DD chart label.
func DateLabel(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ToChartData arranges forecast points into labels plus forecast/lower/upper
// series, the shape expected by the chart renderer.
func ToChartData(points []ForecastPoint) ChartData {
	labels := make([]string, len(points))
	forecast := make([]float64, len(points))
	lower := make([]float64, len(points))
	upper := make([]float64, len(points))
	for i, p := range points {
		labels[i] = DateLabel(p.Date)
		forecast[i] = p.Forecast
		lower[i] = p.Lower
		upper[i] = p.Upper
	}
	return ChartData{
		Labels: labels,
		Datasets: []ChartDataset{
			{Label: "forecast", Data: forecast},
			{Label: "lower", Data: lower},
			{Label: "upper", Data: upper},
		},
	}
}

// Round1 rounds to one decimal place, the precision of all served forecasts.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Round2 rounds to two decimal places, used for ratios and scores.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
