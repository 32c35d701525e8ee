package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moderncolours/paintops/internal/api"
)

// PostgresStore is the production backend.
//
// Schema:
//
//	CREATE TABLE dealers (
//	  id BIGSERIAL PRIMARY KEY,
//	  name TEXT NOT NULL,
//	  region TEXT NOT NULL,
//	  city TEXT NOT NULL,
//	  latitude DOUBLE PRECISION NOT NULL,
//	  longitude DOUBLE PRECISION NOT NULL
//	);
//	CREATE TABLE skus (
//	  id BIGSERIAL PRIMARY KEY,
//	  name TEXT NOT NULL,
//	  color_family TEXT NOT NULL,
//	  size_ltr DOUBLE PRECISION NOT NULL,
//	  unit_cost NUMERIC(12,2) NOT NULL,
//	  unit_price NUMERIC(12,2) NOT NULL
//	);
//	CREATE TABLE inventories (
//	  id BIGSERIAL PRIMARY KEY,
//	  dealer_id BIGINT NOT NULL REFERENCES dealers(id) ON DELETE CASCADE,
//	  sku_id BIGINT NOT NULL REFERENCES skus(id) ON DELETE CASCADE,
//	  quantity INT NOT NULL,
//	  last_received_date DATE NOT NULL,
//	  last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	  UNIQUE (dealer_id, sku_id)
//	);
//	CREATE TABLE sales_history (
//	  id BIGSERIAL PRIMARY KEY,
//	  dealer_id BIGINT NOT NULL REFERENCES dealers(id) ON DELETE CASCADE,
//	  sku_id BIGINT NOT NULL REFERENCES skus(id) ON DELETE CASCADE,
//	  date DATE NOT NULL,
//	  demand DOUBLE PRECISION NOT NULL,
//	  fulfilled DOUBLE PRECISION NOT NULL,
//	  stockout BOOLEAN NOT NULL DEFAULT FALSE
//	);
//	CREATE INDEX idx_sales_sku_date ON sales_history(sku_id, date);
//	CREATE TABLE buyer_signals (
//	  id BIGSERIAL PRIMARY KEY,
//	  region TEXT NOT NULL,
//	  sku_id BIGINT NOT NULL REFERENCES skus(id) ON DELETE CASCADE,
//	  date DATE NOT NULL,
//	  search_interest DOUBLE PRECISION NOT NULL,
//	  demand_spike DOUBLE PRECISION NOT NULL,
//	  event_tag TEXT
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) ListDealers(ctx context.Context) ([]api.Dealer, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, region, city, latitude, longitude FROM dealers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list dealers: %w", err)
	}
	defer rows.Close()

	var out []api.Dealer
	for rows.Next() {
		var d api.Dealer
		if err := rows.Scan(&d.ID, &d.Name, &d.Region, &d.City, &d.Latitude, &d.Longitude); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetDealer(ctx context.Context, id int64) (*api.Dealer, error) {
	var d api.Dealer
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, region, city, latitude, longitude FROM dealers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Region, &d.City, &d.Latitude, &d.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dealer: %w", err)
	}
	return &d, nil
}

func (p *PostgresStore) CreateDealer(ctx context.Context, d *api.Dealer) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO dealers (name, region, city, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.Name, d.Region, d.City, d.Latitude, d.Longitude).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("create dealer: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateDealer(ctx context.Context, d *api.Dealer) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE dealers SET name = $2, region = $3, city = $4, latitude = $5, longitude = $6 WHERE id = $1`,
		d.ID, d.Name, d.Region, d.City, d.Latitude, d.Longitude)
	if err != nil {
		return fmt.Errorf("update dealer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteDealer(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM dealers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dealer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListSKUs(ctx context.Context) ([]api.SKU, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, color_family, size_ltr, unit_cost, unit_price FROM skus ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	defer rows.Close()

	var out []api.SKU
	for rows.Next() {
		var s api.SKU
		if err := rows.Scan(&s.ID, &s.Name, &s.ColorFamily, &s.SizeLtr, &s.UnitCost, &s.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetSKU(ctx context.Context, id int64) (*api.SKU, error) {
	var s api.SKU
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, color_family, size_ltr, unit_cost, unit_price FROM skus WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.ColorFamily, &s.SizeLtr, &s.UnitCost, &s.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sku: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) CreateSKU(ctx context.Context, s *api.SKU) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO skus (name, color_family, size_ltr, unit_cost, unit_price)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.Name, s.ColorFamily, s.SizeLtr, s.UnitCost, s.UnitPrice).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create sku: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateSKU(ctx context.Context, s *api.SKU) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE skus SET name = $2, color_family = $3, size_ltr = $4, unit_cost = $5, unit_price = $6 WHERE id = $1`,
		s.ID, s.Name, s.ColorFamily, s.SizeLtr, s.UnitCost, s.UnitPrice)
	if err != nil {
		return fmt.Errorf("update sku: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteSKU(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM skus WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sku: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListInventory(ctx context.Context, dealerID, skuID int64) ([]api.Inventory, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, dealer_id, sku_id, quantity, last_received_date, last_updated
		 FROM inventories
		 WHERE ($1 = 0 OR dealer_id = $1) AND ($2 = 0 OR sku_id = $2)
		 ORDER BY id`, dealerID, skuID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []api.Inventory
	for rows.Next() {
		var inv api.Inventory
		if err := rows.Scan(&inv.ID, &inv.DealerID, &inv.SKUID, &inv.Quantity, &inv.LastReceived, &inv.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetInventory(ctx context.Context, id int64) (*api.Inventory, error) {
	var inv api.Inventory
	err := p.pool.QueryRow(ctx,
		`SELECT id, dealer_id, sku_id, quantity, last_received_date, last_updated FROM inventories WHERE id = $1`, id).
		Scan(&inv.ID, &inv.DealerID, &inv.SKUID, &inv.Quantity, &inv.LastReceived, &inv.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return &inv, nil
}

func (p *PostgresStore) CreateInventory(ctx context.Context, inv *api.Inventory) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO inventories (dealer_id, sku_id, quantity, last_received_date)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (dealer_id, sku_id) DO NOTHING
		 RETURNING id`,
		inv.DealerID, inv.SKUID, inv.Quantity, inv.LastReceived).Scan(&inv.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create inventory: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateInventory(ctx context.Context, inv *api.Inventory) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE inventories SET quantity = $2, last_received_date = $3, last_updated = NOW() WHERE id = $1`,
		inv.ID, inv.Quantity, inv.LastReceived)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteInventory(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM inventories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Regions(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT region FROM dealers ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RegionSeries(ctx context.Context, skuID int64, region string) ([]SeriesPoint, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT s.date, SUM(s.demand)
		 FROM sales_history s JOIN dealers d ON d.id = s.dealer_id
		 WHERE s.sku_id = $1 AND d.region = $2
		 GROUP BY s.date ORDER BY s.date`, skuID, region)
	if err != nil {
		return nil, fmt.Errorf("region series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Date, &pt.Demand); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DealerSalesStats(ctx context.Context, dealerID, skuID int64, from, to time.Time) (SalesStats, error) {
	var stats SalesStats
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(demand), 0), COALESCE(SUM(fulfilled), 0), COUNT(*),
		        COALESCE(SUM(CASE WHEN stockout THEN 1 ELSE 0 END), 0)
		 FROM sales_history
		 WHERE dealer_id = $1 AND ($2 = 0 OR sku_id = $2) AND date BETWEEN $3 AND $4`,
		dealerID, skuID, from, to).
		Scan(&stats.Demand, &stats.Fulfilled, &stats.Days, &stats.StockoutDays)
	if err != nil {
		return SalesStats{}, fmt.Errorf("dealer sales stats: %w", err)
	}
	return stats, nil
}

func (p *PostgresStore) DealerDemandTotal(ctx context.Context, dealerID, skuID int64) (float64, error) {
	var total float64
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(demand), 0) FROM sales_history WHERE dealer_id = $1 AND sku_id = $2`,
		dealerID, skuID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("dealer demand total: %w", err)
	}
	return total, nil
}

func (p *PostgresStore) RegionDemandTotal(ctx context.Context, region string, skuID int64, from time.Time) (float64, error) {
	var total float64
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(s.demand), 0)
		 FROM sales_history s JOIN dealers d ON d.id = s.dealer_id
		 WHERE d.region = $1 AND s.sku_id = $2 AND s.date >= $3`,
		region, skuID, from).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("region demand total: %w", err)
	}
	return total, nil
}

func (p *PostgresStore) AddSales(ctx context.Context, records []api.SalesRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO sales_history (dealer_id, sku_id, date, demand, fulfilled, stockout)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.DealerID, rec.SKUID, rec.Date, rec.Demand, rec.Fulfilled, rec.Stockout)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("add sales: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) BuyerSignals(ctx context.Context, skuID int64, region string, from, to time.Time) ([]api.BuyerSignal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, region, sku_id, date, search_interest, demand_spike, COALESCE(event_tag, '')
		 FROM buyer_signals
		 WHERE sku_id = $1 AND region = $2 AND date BETWEEN $3 AND $4`,
		skuID, region, from, to)
	if err != nil {
		return nil, fmt.Errorf("buyer signals: %w", err)
	}
	defer rows.Close()

	var out []api.BuyerSignal
	for rows.Next() {
		var sig api.BuyerSignal
		if err := rows.Scan(&sig.ID, &sig.Region, &sig.SKUID, &sig.Date, &sig.SearchInterest, &sig.DemandSpike, &sig.EventTag); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AddBuyerSignals(ctx context.Context, signals []api.BuyerSignal) error {
	batch := &pgx.Batch{}
	for _, sig := range signals {
		tag := any(sig.EventTag)
		if sig.EventTag == "" {
			tag = nil
		}
		batch.Queue(
			`INSERT INTO buyer_signals (region, sku_id, date, search_interest, demand_spike, event_tag)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			sig.Region, sig.SKUID, sig.Date, sig.SearchInterest, sig.DemandSpike, tag)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range signals {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("add buyer signals: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
