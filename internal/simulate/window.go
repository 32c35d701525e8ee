package simulate

import "time"

// resolveWindow maps a year-agnostic window onto concrete dates for the year
// governing d. When the window wraps a year boundary (end before start), the
// candidate interval is re-anchored: if d falls in the tail that began the
// previous year, start shifts back one year; otherwise end shifts forward.
func resolveWindow(d time.Time, w *Window) (start, end time.Time, ok bool) {
	if w == nil {
		return time.Time{}, time.Time{}, false
	}

	year := d.Year()
	start = DateUTC(year, w.Start.Month, w.Start.Day)
	end = DateUTC(year, w.End.Month, w.End.Day)

	if end.Before(start) {
		if !d.After(end) {
			start = start.AddDate(-1, 0, 0)
		} else {
			end = end.AddDate(1, 0, 0)
		}
	}
	return start, end, true
}

// insideWindow reports whether canonical date d lies in [start, end].
func insideWindow(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}

// windowPosition returns t in [0,1], the normalized position of d inside the
// window. A degenerate single-day window maps to t=0.
func windowPosition(d, start, end time.Time) float64 {
	span := daysBetween(start, end)
	if span <= 0 {
		return 0
	}
	return float64(daysBetween(start, d)) / float64(span)
}
