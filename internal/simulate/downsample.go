package simulate

import "github.com/moderncolours/paintops/internal/api"

// Downsample reduces a point series to at most max points for presentation,
// always keeping the first and last original points and otherwise sampling at
// a fixed stride. Downsampling an already-downsampled series with the same or
// a larger budget is a no-op.
func Downsample(points []api.ForecastPoint, max int) []api.ForecastPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[:1]
	}

	stride := (len(points) + max - 1) / max
	out := make([]api.ForecastPoint, 0, max)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}

	last := points[len(points)-1]
	if out[len(out)-1].Date != last.Date {
		if len(out) == max {
			out[len(out)-1] = last
		} else {
			out = append(out, last)
		}
	}
	return out
}
