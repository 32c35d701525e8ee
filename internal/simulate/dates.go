package simulate

import (
	"strings"
	"time"
)

// All date arithmetic in this package runs on UTC calendar dates (midnight
// UTC, no time-of-day). Raw input representations never cross this boundary.

var generalLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// DateUTC builds a canonical UTC calendar date.
func DateUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// canonDate truncates any time value to its UTC calendar date.
func canonDate(t time.Time) time.Time {
	u := t.UTC()
	return DateUTC(u.Year(), u.Month(), u.Day())
}

// daysBetween returns the signed whole-day distance from a to b. Both inputs
// must already be canonical dates.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// NormalizeDates converts a sequence of date-like inputs (time values,
// YYYY-MM-DD strings, other parseable strings, or nothing at all) into an
// equal-length sequence of canonical UTC dates. Positions that cannot be
// parsed get a synthetic fallback of now.Year()'s Jan 1 plus (index+1) days,
// so every position receives a distinct, ordered date.
func NormalizeDates(inputs []any, now time.Time) []time.Time {
	out := make([]time.Time, len(inputs))
	anchor := DateUTC(now.UTC().Year(), time.January, 1)

	for i, in := range inputs {
		switch v := in.(type) {
		case time.Time:
			out[i] = canonDate(v)
			continue
		case *time.Time:
			if v != nil {
				out[i] = canonDate(*v)
				continue
			}
		case string:
			if d, ok := parseDateString(v); ok {
				out[i] = d
				continue
			}
		}
		out[i] = anchor.AddDate(0, 0, i+1)
	}
	return out
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return d, true
	}
	for _, layout := range generalLayouts {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return canonDate(d), true
		}
	}
	return time.Time{}, false
}

// LabelsMeaningful reports whether a label sequence can serve as an
// authoritative timeline: every label non-blank and no duplicates. Callers
// that treat incoming dates as display labels must check this before
// per-element normalization and fall back to SequenceDates when it fails.
func LabelsMeaningful(labels []string) bool {
	if len(labels) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return false
		}
		if _, dup := seen[l]; dup {
			return false
		}
		seen[l] = struct{}{}
	}
	return true
}

// SequenceDates generates a fresh daily sequence of n canonical dates
// starting from tomorrow UTC. This is the sequence-level fallback used when
// source labels carry no usable timeline.
func SequenceDates(n int, now time.Time) []time.Time {
	today := canonDate(now)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = today.AddDate(0, 0, i+1)
	}
	return out
}
