package simulate

import (
	"math"
	"time"
)

// fwhmToSigma converts a full-width-half-max spread in days to a Gaussian
// standard deviation.
const fwhmToSigma = 2.355

const defaultWidthDays = 14

// Context carries the optional target entity of a simulation. A zero DealerID
// means no dealer context.
type Context struct {
	DealerID int64
}

// Engine evaluates event profiles into multiplier curves and composes them
// with baseline forecasts. It is stateless apart from its immutable catalog
// and performs no I/O; identical inputs always yield identical outputs.
type Engine struct {
	catalog Catalog
	now     func() time.Time
}

// NewEngine creates an engine over an explicit profile catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog, now: time.Now}
}

// WithClock overrides the engine's clock. Synthetic fallback dates depend on
// "now", so tests pin it for reproducibility.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Catalog returns the engine's profile catalog.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// BuildCurve evaluates the named event across a date sequence and returns one
// multiplicative factor per date (1 = no adjustment). An unknown tag or an
// empty sequence yields an empty curve, which callers must treat as all-ones.
func (e *Engine) BuildCurve(tag string, dates []time.Time, ctx Context) []float64 {
	profile, ok := e.catalog.Lookup(tag)
	if !ok || len(dates) == 0 {
		return nil
	}

	curve := make([]float64, len(dates))
	for i, d := range dates {
		curve[i] = 1 + e.impactOn(canonDate(d), profile, ctx)
	}
	return curve
}

// impactOn computes the signed fractional impact of a profile on one date.
func (e *Engine) impactOn(d time.Time, p Profile, ctx Context) float64 {
	switch p.Kind {
	case KindSpike:
		center, ok := resolveCenter(d, p, ctx)
		if !ok {
			return 0
		}
		return spikeImpact(d, center, p.WidthDays, p.PeakImpact)

	case KindDip, KindRamp, KindStep:
		start, end, ok := resolveWindow(d, p.Window)
		if !ok || !insideWindow(d, start, end) {
			return 0
		}
		t := windowPosition(d, start, end)
		switch p.Kind {
		case KindDip:
			// Downward parabola: full impact at the window midpoint,
			// vanishing at both edges.
			return p.PeakImpact * (1 - math.Min(1, 4*(t-0.5)*(t-0.5)))
		case KindRamp:
			return p.PeakImpact * t
		default: // KindStep
			return p.PeakImpact
		}
	}
	return 0
}

// resolveCenter finds the spike peak date governing d. An explicit center
// uses d's calendar year. A per-dealer profile derives a stable pseudo
// anniversary from the dealer ID (month = id mod 12 + 1, day 15). With
// neither, the profile contributes no impact.
func resolveCenter(d time.Time, p Profile, ctx Context) (time.Time, bool) {
	if p.Center != nil {
		return DateUTC(d.Year(), p.Center.Month, p.Center.Day), true
	}
	if p.PerDealer && ctx.DealerID > 0 {
		month := time.Month(ctx.DealerID%12 + 1)
		return DateUTC(d.Year(), month, 15), true
	}
	return time.Time{}, false
}

// spikeImpact is the Gaussian kernel around a center date.
func spikeImpact(d, center time.Time, widthDays int, peak float64) float64 {
	if widthDays <= 0 {
		widthDays = defaultWidthDays
	}
	// Floor sigma at 3 days to avoid degenerate single-day spikes.
	sigma := math.Max(3, float64(widthDays)/fwhmToSigma)
	dist := float64(daysBetween(center, d))
	return peak * math.Exp(-0.5*(dist/sigma)*(dist/sigma))
}
