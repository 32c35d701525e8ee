package fcache

import (
	"context"
	"fmt"
	"time"

	"github.com/moderncolours/paintops/internal/api"
)

// DefaultTTL bounds how stale a cached baseline may be served.
const DefaultTTL = 5 * time.Minute

// Cache stores computed baseline forecasts keyed by SKU, region and horizon.
// A miss returns (nil, nil).
type Cache interface {
	Get(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error)
	Set(ctx context.Context, resp *api.ForecastResponse) error
	Invalidate(ctx context.Context, skuID int64, region string) error
	Close() error
}

func cacheKey(skuID int64, region string, horizon int) string {
	return fmt.Sprintf("forecast:%d|%s|%d", skuID, region, horizon)
}
