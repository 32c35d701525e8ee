package simulate

import (
	"fmt"
	"time"

	"github.com/moderncolours/paintops/internal/api"
)

// Policy selects how an event curve is combined with the baseline. The two
// behave differently on purpose: Direct scales the forecast level, Normalized
// removes the curve's average effect first and imposes only its shape.
type Policy string

const (
	// PolicyDirect applies (1 + p/100) * curve[i] to every point. Used when
	// the baseline is locally synthesized and carries no level of its own
	// worth preserving.
	PolicyDirect Policy = "direct"

	// PolicyNormalized divides the curve by its own mean before applying it,
	// preserving the external forecast's long-run level while reshaping the
	// horizon. Used when the baseline comes from the forecast provider.
	PolicyNormalized Policy = "normalized"
)

// Result is the outcome of a what-if composition.
type Result struct {
	Points      []api.ForecastPoint
	Explanation string
}

// Simulate composes a baseline point series with a flat percent shift and the
// named event's multiplier curve. The curve is aligned 1:1 to the baseline's
// dates. Every scaled value is rounded to one decimal. An unknown or empty
// tag degrades to the flat shift alone.
func (e *Engine) Simulate(baseline []api.ForecastPoint, percentShift float64, tag string, policy Policy, ctx Context) Result {
	dates := make([]time.Time, len(baseline))
	for i, p := range baseline {
		dates[i] = p.Date
	}
	curve := e.BuildCurve(tag, dates, ctx)

	if policy == PolicyNormalized && len(curve) > 0 {
		curve = normalizeCurve(curve)
	}

	shift := 1 + percentShift/100
	points := make([]api.ForecastPoint, len(baseline))
	for i, p := range baseline {
		mult := shift
		if len(curve) > 0 {
			mult *= curve[i]
		}
		points[i] = api.ForecastPoint{
			Date:     p.Date,
			Forecast: api.Round1(p.Forecast * mult),
			Lower:    api.Round1(p.Lower * mult),
			Upper:    api.Round1(p.Upper * mult),
		}
	}

	return Result{
		Points:      points,
		Explanation: e.explain(percentShift, tag),
	}
}

// normalizeCurve divides a curve by its own mean so its average multiplier is
// 1. A zero mean (an event with zero net impact) is guarded as 1 so the
// output never holds NaN or Inf.
func normalizeCurve(curve []float64) []float64 {
	sum := 0.0
	for _, v := range curve {
		sum += v
	}
	mean := sum / float64(len(curve))
	if mean == 0 {
		mean = 1
	}
	out := make([]float64, len(curve))
	for i, v := range curve {
		out[i] = v / mean
	}
	return out
}

// explain writes the human-readable note accompanying a simulation.
func (e *Engine) explain(percentShift float64, tag string) string {
	s := fmt.Sprintf("What-if change %+.1f%% applied to base forecast.", percentShift)
	if tag == "" {
		return s
	}
	profile, ok := e.catalog.Lookup(tag)
	if !ok {
		return s + fmt.Sprintf(" No event effect for '%s'.", tag)
	}
	return s + fmt.Sprintf(" Event shock for '%s' applied (%s, avg %+.0f%%, peak %+.0f%%).",
		tag, profile.Kind, profile.AvgImpact*100, profile.PeakImpact*100)
}
