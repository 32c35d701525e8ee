package forecast

import (
	"math"
	"time"
)

// movingAverage forecasts a flat continuation of the mean of the trailing
// window.
func movingAverage(history []float64, window, horizon int) []float64 {
	if window > len(history) {
		window = len(history)
	}
	avg := mean(history[len(history)-window:])
	out := make([]float64, horizon)
	for i := range out {
		out[i] = avg
	}
	return out
}

// expSmoothing runs simple exponential smoothing over the history and
// forecasts a flat continuation of the final level.
func expSmoothing(history []float64, alpha float64, horizon int) []float64 {
	level := history[0]
	for _, y := range history[1:] {
		level = alpha*y + (1-alpha)*level
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = level
	}
	return out
}

// linearRegression fits demand against a trend index plus yearly seasonality
// terms (sin/cos of day-of-year, month number) and extrapolates forward.
// Forecasts are floored at zero.
func linearRegression(dates []time.Time, history []float64, horizon int) []float64 {
	n := len(history)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = regressionFeatures(float64(i), dates[i])
	}

	coef := fitOLS(rows, history)

	last := dates[n-1]
	out := make([]float64, horizon)
	for i := range out {
		feat := regressionFeatures(float64(n+i), last.AddDate(0, 0, i+1))
		pred := 0.0
		for j, c := range coef {
			pred += c * feat[j]
		}
		out[i] = math.Max(0, pred)
	}
	return out
}

func regressionFeatures(idx float64, date time.Time) []float64 {
	doy := float64(date.YearDay())
	return []float64{
		1, // intercept
		idx,
		math.Sin(2 * math.Pi * doy / 365),
		math.Cos(2 * math.Pi * doy / 365),
		float64(date.Month()),
	}
}

// fitOLS solves the normal equations X'X b = X'y by Gaussian elimination
// with partial pivoting. The design matrix here is tiny (5 columns) so a
// dense direct solve is fine.
func fitOLS(rows [][]float64, y []float64) []float64 {
	k := len(rows[0])
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for r, row := range rows {
		for i := 0; i < k; i++ {
			xty[i] += row[i] * y[r]
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(xtx[r][col]) > math.Abs(xtx[pivot][col]) {
				pivot = r
			}
		}
		xtx[col], xtx[pivot] = xtx[pivot], xtx[col]
		xty[col], xty[pivot] = xty[pivot], xty[col]

		if math.Abs(xtx[col][col]) < 1e-12 {
			continue // degenerate column, coefficient stays zero
		}
		for r := col + 1; r < k; r++ {
			factor := xtx[r][col] / xtx[col][col]
			for c := col; c < k; c++ {
				xtx[r][c] -= factor * xtx[col][c]
			}
			xty[r] -= factor * xty[col]
		}
	}

	coef := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		if math.Abs(xtx[i][i]) < 1e-12 {
			coef[i] = 0
			continue
		}
		sum := xty[i]
		for j := i + 1; j < k; j++ {
			sum -= xtx[i][j] * coef[j]
		}
		coef[i] = sum / xtx[i][i]
	}
	return coef
}
