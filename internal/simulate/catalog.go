package simulate

import (
	"strings"
	"time"
)

// Kind selects the closed-form shape of an event's impact curve.
type Kind string

const (
	KindSpike Kind = "spike" // Gaussian impact around a peak date
	KindDip   Kind = "dip"   // parabolic dip across a calendar window
	KindRamp  Kind = "ramp"  // linear ramp from 0 to peak across a window
	KindStep  Kind = "step"  // constant impact inside a window
)

// MonthDay is a year-agnostic calendar position.
type MonthDay struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// Window is a yearly recurring calendar range. It may wrap a year boundary
// (End before Start), e.g. a wedding season running November through February.
type Window struct {
	Start MonthDay `json:"start"`
	End   MonthDay `json:"end"`
}

// Profile describes how one named event shifts demand over time.
//
// Exactly one of Window/Center is meaningful per Kind: dip, ramp and step
// require Window; spike takes either an explicit Center or, when PerDealer is
// set and a dealer is supplied at build time, a derived per-dealer center.
type Profile struct {
	Kind       Kind      `json:"kind"`
	AvgImpact  float64   `json:"avg_impact"`  // signed fraction, -0.25 = -25%
	PeakImpact float64   `json:"peak_impact"` // signed fraction at the curve peak
	Window     *Window   `json:"window,omitempty"`
	Center     *MonthDay `json:"center,omitempty"`
	WidthDays  int       `json:"width_days,omitempty"`
	PerDealer  bool      `json:"per_dealer,omitempty"` // derive spike center from dealer ID
}

// Catalog maps a lowercase event tag to its profile. It is read-only after
// construction and passed explicitly into the engine so tests can swap it.
type Catalog map[string]Profile

// Lookup resolves a tag case-insensitively.
func (c Catalog) Lookup(tag string) (Profile, bool) {
	p, ok := c[strings.ToLower(strings.TrimSpace(tag))]
	return p, ok
}

// DefaultCatalog returns the hand-authored profiles for the Indian paint
// market calendar. Impacts are fractions of baseline demand.
func DefaultCatalog() Catalog {
	return Catalog{
		"diwali": {
			Kind:       KindSpike,
			AvgImpact:  0.12,
			PeakImpact: 0.35,
			Center:     &MonthDay{Month: time.November, Day: 1},
			WidthDays:  21,
		},
		"holi": {
			Kind:       KindSpike,
			AvgImpact:  0.06,
			PeakImpact: 0.18,
			Center:     &MonthDay{Month: time.March, Day: 14},
			WidthDays:  10,
		},
		"monsoon": {
			Kind:       KindDip,
			AvgImpact:  -0.05,
			PeakImpact: -0.15,
			Window: &Window{
				Start: MonthDay{Month: time.June, Day: 1},
				End:   MonthDay{Month: time.September, Day: 15},
			},
		},
		"construction-boom": {
			Kind:       KindRamp,
			AvgImpact:  0.08,
			PeakImpact: 0.20,
			Window: &Window{
				Start: MonthDay{Month: time.October, Day: 1},
				End:   MonthDay{Month: time.March, Day: 31},
			},
		},
		"festival-season": {
			Kind:       KindStep,
			AvgImpact:  0.12,
			PeakImpact: 0.12,
			Window: &Window{
				Start: MonthDay{Month: time.October, Day: 1},
				End:   MonthDay{Month: time.November, Day: 30},
			},
		},
		"wedding-season": {
			Kind:       KindStep,
			AvgImpact:  0.09,
			PeakImpact: 0.09,
			Window: &Window{
				Start: MonthDay{Month: time.November, Day: 15},
				End:   MonthDay{Month: time.February, Day: 15},
			},
		},
		"dealer-anniversary": {
			Kind:       KindSpike,
			AvgImpact:  0.08,
			PeakImpact: 0.25,
			WidthDays:  14,
			PerDealer:  true,
		},
	}
}
