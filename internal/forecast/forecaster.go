package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/store"
)

// ErrBaselineTimeout marks a baseline fetch that exceeded its deadline. It is
// distinct from other failures so callers can retry; no retries happen here.
var ErrBaselineTimeout = errors.New("baseline forecast timed out")

const (
	minHistoryPoints = 10
	signalLookback   = 14 // days of buyer signals feeding the adjustment
	maWindow         = 14
	smoothingAlpha   = 0.3
	zScore95         = 1.96
)

// Provider supplies the baseline demand forecast the simulation engine
// adjusts. Implementations must be safe for concurrent use.
type Provider interface {
	Baseline(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error)
}

// Forecaster is the store-backed local provider. It validates three
// candidate models on a holdout split, picks the one with the lowest MAPE,
// and adjusts the result by recent buyer signals.
type Forecaster struct {
	store store.Store
	now   func() time.Time
}

// New creates a forecaster over a store.
func New(s store.Store) *Forecaster {
	return &Forecaster{store: s, now: time.Now}
}

// WithClock pins the forecaster's clock, used by tests.
func (f *Forecaster) WithClock(now func() time.Time) *Forecaster {
	f.now = now
	return f
}

// Baseline produces the demand forecast for a SKU in a region.
func (f *Forecaster) Baseline(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	series, err := f.store.RegionSeries(ctx, skuID, region)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales series: %w", err)
	}

	signalMult, signalNote, err := f.signalAdjustment(ctx, skuID, region)
	if err != nil {
		return nil, err
	}

	if len(series) < minHistoryPoints {
		return f.averageBaseline(skuID, region, horizon, series, signalMult, signalNote), nil
	}

	demand := make([]float64, len(series))
	dates := make([]time.Time, len(series))
	for i, pt := range series {
		demand[i] = pt.Demand
		dates[i] = pt.Date
	}

	split := int(float64(len(demand)) * 0.8)
	if split < 7 {
		split = 7
	}
	train, val := demand[:split], demand[split:]

	candidates := []struct {
		name    string
		valPred []float64
	}{
		{"moving-average", movingAverage(train, maWindow, len(val))},
		{"exp-smoothing", expSmoothing(train, smoothingAlpha, len(val))},
		{"linear-regression", linearRegression(dates[:split], train, len(val))},
	}

	best := candidates[0]
	bestMAPE := mape(val, best.valPred)
	for _, c := range candidates[1:] {
		if m := mape(val, c.valPred); m < bestMAPE {
			best, bestMAPE = c, m
		}
	}

	var future []float64
	switch best.name {
	case "moving-average":
		future = movingAverage(demand, maWindow, horizon)
	case "exp-smoothing":
		future = expSmoothing(demand, smoothingAlpha, horizon)
	default:
		future = linearRegression(dates, demand, horizon)
	}

	var std float64
	if len(val) > 3 {
		residuals := make([]float64, len(val))
		for i := range val {
			residuals[i] = val[i] - best.valPred[i]
		}
		std = stddev(residuals)
	} else {
		std = stddev(demand) * 0.1
	}

	confidence := clamp(1-bestMAPE, 0.6, 0.9)

	lastDate := dates[len(dates)-1]
	points := make([]api.ForecastPoint, horizon)
	for i := range points {
		adjusted := future[i] * signalMult
		points[i] = api.ForecastPoint{
			Date:     lastDate.AddDate(0, 0, i+1),
			Forecast: adjusted,
			Lower:    math.Max(0, adjusted-zScore95*std),
			Upper:    adjusted + zScore95*std,
		}
	}

	explanation := fmt.Sprintf(
		"Selected %s model with MAPE %.2f. Confidence band derived from residual std %.2f. %s",
		best.name, bestMAPE, std, signalNote)

	return &api.ForecastResponse{
		SKUID:            skuID,
		Region:           region,
		Model:            best.name,
		Horizon:          horizon,
		Confidence:       confidence,
		Explanation:      explanation,
		SignalAdjustment: signalMult,
		Points:           points,
	}, nil
}

// averageBaseline is the degraded path when history is too thin for model
// selection. Its provenance ("baseline-average") tells the composer to use
// the direct policy downstream.
func (f *Forecaster) averageBaseline(skuID int64, region string, horizon int, series []store.SeriesPoint, signalMult float64, signalNote string) *api.ForecastResponse {
	base := 40.0
	if len(series) > 0 {
		sum := 0.0
		for _, pt := range series {
			sum += pt.Demand
		}
		base = sum / float64(len(series))
	}
	base *= signalMult

	last := f.now().UTC().Truncate(24 * time.Hour)
	if len(series) > 0 {
		last = series[len(series)-1].Date
	}

	points := make([]api.ForecastPoint, horizon)
	for i := range points {
		points[i] = api.ForecastPoint{
			Date:     last.AddDate(0, 0, i+1),
			Forecast: base,
			Lower:    base * 0.9,
			Upper:    base * 1.1,
		}
	}

	return &api.ForecastResponse{
		SKUID:            skuID,
		Region:           region,
		Model:            "baseline-average",
		Horizon:          horizon,
		Confidence:       0.55,
		Explanation:      "Insufficient historical data; used average demand baseline. " + signalNote,
		SignalAdjustment: signalMult,
		Points:           points,
	}
}

// signalAdjustment derives a bounded multiplier from recent buyer signals.
func (f *Forecaster) signalAdjustment(ctx context.Context, skuID int64, region string) (float64, string, error) {
	end := f.now().UTC()
	start := end.AddDate(0, 0, -signalLookback)

	signals, err := f.store.BuyerSignals(ctx, skuID, region, start, end)
	if err != nil {
		return 0, "", fmt.Errorf("failed to load buyer signals: %w", err)
	}
	if len(signals) == 0 {
		return 1.0, "No recent buyer-signal data; base forecast used.", nil
	}

	var searchSum, spikeSum float64
	tagSet := make(map[string]struct{})
	for _, sig := range signals {
		searchSum += sig.SearchInterest
		spikeSum += sig.DemandSpike
		if sig.EventTag != "" {
			tagSet[sig.EventTag] = struct{}{}
		}
	}
	searchAvg := searchSum / float64(len(signals))
	spikeAvg := spikeSum / float64(len(signals))

	mult := clamp(1+(searchAvg-50)/200+spikeAvg*0.2, 0.8, 1.3)

	note := fmt.Sprintf(
		"Buyer signals adjusted forecast by %.2fx based on avg search interest %.1f and spike index %.2f.",
		mult, searchAvg, spikeAvg)
	if len(tagSet) > 0 {
		tags := make([]string, 0, len(tagSet))
		for t := range tagSet {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		note += fmt.Sprintf(" Event tags observed: %s.", strings.Join(tags, ", "))
	}
	return mult, note, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// mape is the mean absolute percentage error with a floor of 1 on the
// denominator so near-zero actuals don't blow it up.
func mape(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range actual {
		denom := math.Max(1, actual[i])
		sum += math.Abs(actual[i]-predicted[i]) / denom
	}
	return sum / float64(len(actual))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - mu) * (x - mu)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
