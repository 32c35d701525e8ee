package store

import (
	"context"
	"errors"
	"time"

	"github.com/moderncolours/paintops/internal/api"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint would be violated.
var ErrConflict = errors.New("already exists")

// SeriesPoint is one day of aggregated regional demand.
type SeriesPoint struct {
	Date   time.Time
	Demand float64
}

// SalesStats aggregates a dealer/SKU sales window.
type SalesStats struct {
	Demand       float64
	Fulfilled    float64
	Days         int
	StockoutDays int
}

// Store is the persistence boundary for the dashboard's entities. Backends
// are selected at startup (memory for dev and tests, postgres in
// production); all methods are safe for concurrent use.
type Store interface {
	ListDealers(ctx context.Context) ([]api.Dealer, error)
	GetDealer(ctx context.Context, id int64) (*api.Dealer, error)
	CreateDealer(ctx context.Context, d *api.Dealer) error
	UpdateDealer(ctx context.Context, d *api.Dealer) error
	DeleteDealer(ctx context.Context, id int64) error

	ListSKUs(ctx context.Context) ([]api.SKU, error)
	GetSKU(ctx context.Context, id int64) (*api.SKU, error)
	CreateSKU(ctx context.Context, s *api.SKU) error
	UpdateSKU(ctx context.Context, s *api.SKU) error
	DeleteSKU(ctx context.Context, id int64) error

	// ListInventory filters by dealer and/or SKU; zero means no filter.
	ListInventory(ctx context.Context, dealerID, skuID int64) ([]api.Inventory, error)
	GetInventory(ctx context.Context, id int64) (*api.Inventory, error)
	CreateInventory(ctx context.Context, inv *api.Inventory) error
	UpdateInventory(ctx context.Context, inv *api.Inventory) error
	DeleteInventory(ctx context.Context, id int64) error

	// Regions lists the distinct dealer regions.
	Regions(ctx context.Context) ([]string, error)

	// RegionSeries returns the daily demand for a SKU summed over every
	// dealer in a region, ordered by date.
	RegionSeries(ctx context.Context, skuID int64, region string) ([]SeriesPoint, error)

	// DealerSalesStats aggregates a dealer's sales for a SKU in [from, to].
	// A zero skuID aggregates across all SKUs.
	DealerSalesStats(ctx context.Context, dealerID, skuID int64, from, to time.Time) (SalesStats, error)

	// DealerDemandTotal is the all-time demand of a dealer for a SKU.
	DealerDemandTotal(ctx context.Context, dealerID, skuID int64) (float64, error)

	// RegionDemandTotal is the demand for a SKU across a region since from.
	RegionDemandTotal(ctx context.Context, region string, skuID int64, from time.Time) (float64, error)

	AddSales(ctx context.Context, records []api.SalesRecord) error

	BuyerSignals(ctx context.Context, skuID int64, region string, from, to time.Time) ([]api.BuyerSignal, error)
	AddBuyerSignals(ctx context.Context, signals []api.BuyerSignal) error

	Close() error
}
