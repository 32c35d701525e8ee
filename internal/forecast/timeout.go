package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/moderncolours/paintops/internal/api"
)

// TimeoutProvider wraps a provider with a per-call deadline and converts
// deadline expiry into ErrBaselineTimeout so callers can tell a slow
// baseline from a broken one.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// NewTimeoutProvider wraps inner with the given per-call timeout.
func NewTimeoutProvider(inner Provider, timeout time.Duration) *TimeoutProvider {
	return &TimeoutProvider{inner: inner, timeout: timeout}
}

func (p *TimeoutProvider) Baseline(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.inner.Baseline(ctx, skuID, region, horizon)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrBaselineTimeout
		}
		return nil, err
	}
	return resp, nil
}
