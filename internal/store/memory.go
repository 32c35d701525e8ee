package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/simulate"
)

// MemoryStore keeps everything in maps with an optional JSON snapshot on
// disk. Writes schedule a debounced snapshot save so bursts of CRUD traffic
// coalesce into one disk write.
type MemoryStore struct {
	mu        sync.RWMutex
	dealers   map[int64]api.Dealer
	skus      map[int64]api.SKU
	inventory map[int64]api.Inventory
	sales     []api.SalesRecord
	signals   []api.BuyerSignal
	nextID    map[string]int64

	snapshot string
	saver    *simulate.Debouncer
}

type memorySnapshot struct {
	Dealers   []api.Dealer      `json:"dealers"`
	SKUs      []api.SKU         `json:"skus"`
	Inventory []api.Inventory   `json:"inventory"`
	Sales     []api.SalesRecord `json:"sales"`
	Signals   []api.BuyerSignal `json:"buyer_signals"`
}

// NewMemoryStore creates an in-memory store. An empty snapshotPath disables
// persistence.
func NewMemoryStore(snapshotPath string) *MemoryStore {
	ms := &MemoryStore{
		dealers:   make(map[int64]api.Dealer),
		skus:      make(map[int64]api.SKU),
		inventory: make(map[int64]api.Inventory),
		nextID:    map[string]int64{"dealer": 0, "sku": 0, "inventory": 0},
		snapshot:  snapshotPath,
	}
	if snapshotPath != "" {
		ms.saver = simulate.NewDebouncer(simulate.DefaultQuiescence, func() {
			if err := ms.saveSnapshot(); err != nil {
				log.Printf("snapshot save error: %v", err)
			}
		})
		if err := ms.loadSnapshot(); err != nil {
			log.Printf("snapshot load error: %v", err)
		}
	}
	return ms
}

func (m *MemoryStore) dirty() {
	if m.saver != nil {
		m.saver.Trigger()
	}
}

func (m *MemoryStore) alloc(kind string) int64 {
	m.nextID[kind]++
	return m.nextID[kind]
}

func (m *MemoryStore) ListDealers(ctx context.Context) ([]api.Dealer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.Dealer, 0, len(m.dealers))
	for _, d := range m.dealers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetDealer(ctx context.Context, id int64) (*api.Dealer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dealers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) CreateDealer(ctx context.Context, d *api.Dealer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == 0 {
		d.ID = m.alloc("dealer")
	} else if d.ID > m.nextID["dealer"] {
		m.nextID["dealer"] = d.ID
	}
	m.dealers[d.ID] = *d
	m.dirty()
	return nil
}

func (m *MemoryStore) UpdateDealer(ctx context.Context, d *api.Dealer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dealers[d.ID]; !ok {
		return ErrNotFound
	}
	m.dealers[d.ID] = *d
	m.dirty()
	return nil
}

func (m *MemoryStore) DeleteDealer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dealers[id]; !ok {
		return ErrNotFound
	}
	delete(m.dealers, id)
	for invID, inv := range m.inventory {
		if inv.DealerID == id {
			delete(m.inventory, invID)
		}
	}
	m.dirty()
	return nil
}

func (m *MemoryStore) ListSKUs(ctx context.Context) ([]api.SKU, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.SKU, 0, len(m.skus))
	for _, s := range m.skus {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetSKU(ctx context.Context, id int64) (*api.SKU, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.skus[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateSKU(ctx context.Context, s *api.SKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == 0 {
		s.ID = m.alloc("sku")
	} else if s.ID > m.nextID["sku"] {
		m.nextID["sku"] = s.ID
	}
	m.skus[s.ID] = *s
	m.dirty()
	return nil
}

func (m *MemoryStore) UpdateSKU(ctx context.Context, s *api.SKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.skus[s.ID]; !ok {
		return ErrNotFound
	}
	m.skus[s.ID] = *s
	m.dirty()
	return nil
}

func (m *MemoryStore) DeleteSKU(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.skus[id]; !ok {
		return ErrNotFound
	}
	delete(m.skus, id)
	for invID, inv := range m.inventory {
		if inv.SKUID == id {
			delete(m.inventory, invID)
		}
	}
	m.dirty()
	return nil
}

func (m *MemoryStore) ListInventory(ctx context.Context, dealerID, skuID int64) ([]api.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []api.Inventory
	for _, inv := range m.inventory {
		if dealerID != 0 && inv.DealerID != dealerID {
			continue
		}
		if skuID != 0 && inv.SKUID != skuID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetInventory(ctx context.Context, id int64) (*api.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.inventory[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (m *MemoryStore) CreateInventory(ctx context.Context, inv *api.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.inventory {
		if existing.DealerID == inv.DealerID && existing.SKUID == inv.SKUID {
			return ErrConflict
		}
	}
	if inv.ID == 0 {
		inv.ID = m.alloc("inventory")
	} else if inv.ID > m.nextID["inventory"] {
		m.nextID["inventory"] = inv.ID
	}
	inv.LastUpdated = time.Now().UTC()
	m.inventory[inv.ID] = *inv
	m.dirty()
	return nil
}

func (m *MemoryStore) UpdateInventory(ctx context.Context, inv *api.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.inventory[inv.ID]
	if !ok {
		return ErrNotFound
	}
	inv.DealerID = existing.DealerID
	inv.SKUID = existing.SKUID
	inv.LastUpdated = time.Now().UTC()
	m.inventory[inv.ID] = *inv
	m.dirty()
	return nil
}

func (m *MemoryStore) DeleteInventory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inventory[id]; !ok {
		return ErrNotFound
	}
	delete(m.inventory, id)
	m.dirty()
	return nil
}

func (m *MemoryStore) Regions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range m.dealers {
		seen[d.Region] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) RegionSeries(ctx context.Context, skuID int64, region string) ([]SeriesPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDate := make(map[time.Time]float64)
	for _, rec := range m.sales {
		if rec.SKUID != skuID {
			continue
		}
		dealer, ok := m.dealers[rec.DealerID]
		if !ok || !strings.EqualFold(dealer.Region, region) {
			continue
		}
		byDate[rec.Date] += rec.Demand
	}

	out := make([]SeriesPoint, 0, len(byDate))
	for d, demand := range byDate {
		out = append(out, SeriesPoint{Date: d, Demand: demand})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) DealerSalesStats(ctx context.Context, dealerID, skuID int64, from, to time.Time) (SalesStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats SalesStats
	for _, rec := range m.sales {
		if rec.DealerID != dealerID {
			continue
		}
		if skuID != 0 && rec.SKUID != skuID {
			continue
		}
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		stats.Demand += rec.Demand
		stats.Fulfilled += rec.Fulfilled
		stats.Days++
		if rec.Stockout {
			stats.StockoutDays++
		}
	}
	return stats, nil
}

func (m *MemoryStore) DealerDemandTotal(ctx context.Context, dealerID, skuID int64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, rec := range m.sales {
		if rec.DealerID == dealerID && rec.SKUID == skuID {
			total += rec.Demand
		}
	}
	return total, nil
}

func (m *MemoryStore) RegionDemandTotal(ctx context.Context, region string, skuID int64, from time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, rec := range m.sales {
		if rec.SKUID != skuID || rec.Date.Before(from) {
			continue
		}
		dealer, ok := m.dealers[rec.DealerID]
		if !ok || !strings.EqualFold(dealer.Region, region) {
			continue
		}
		total += rec.Demand
	}
	return total, nil
}

func (m *MemoryStore) AddSales(ctx context.Context, records []api.SalesRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sales = append(m.sales, records...)
	m.dirty()
	return nil
}

func (m *MemoryStore) BuyerSignals(ctx context.Context, skuID int64, region string, from, to time.Time) ([]api.BuyerSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []api.BuyerSignal
	for _, sig := range m.signals {
		if sig.SKUID != skuID || !strings.EqualFold(sig.Region, region) {
			continue
		}
		if sig.Date.Before(from) || sig.Date.After(to) {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func (m *MemoryStore) AddBuyerSignals(ctx context.Context, signals []api.BuyerSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals = append(m.signals, signals...)
	m.dirty()
	return nil
}

// Close flushes any pending snapshot write.
func (m *MemoryStore) Close() error {
	if m.saver != nil {
		m.saver.Stop()
		return m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range snap.Dealers {
		m.dealers[d.ID] = d
		if d.ID > m.nextID["dealer"] {
			m.nextID["dealer"] = d.ID
		}
	}
	for _, s := range snap.SKUs {
		m.skus[s.ID] = s
		if s.ID > m.nextID["sku"] {
			m.nextID["sku"] = s.ID
		}
	}
	for _, inv := range snap.Inventory {
		m.inventory[inv.ID] = inv
		if inv.ID > m.nextID["inventory"] {
			m.nextID["inventory"] = inv.ID
		}
	}
	m.sales = snap.Sales
	m.signals = snap.Signals
	return nil
}

func (m *MemoryStore) saveSnapshot() error {
	m.mu.RLock()
	snap := memorySnapshot{
		Sales:   m.sales,
		Signals: m.signals,
	}
	for _, d := range m.dealers {
		snap.Dealers = append(snap.Dealers, d)
	}
	for _, s := range m.skus {
		snap.SKUs = append(snap.SKUs, s)
	}
	for _, inv := range m.inventory {
		snap.Inventory = append(snap.Inventory, inv)
	}
	m.mu.RUnlock()

	sort.Slice(snap.Dealers, func(i, j int) bool { return snap.Dealers[i].ID < snap.Dealers[j].ID })
	sort.Slice(snap.SKUs, func(i, j int) bool { return snap.SKUs[i].ID < snap.SKUs[j].ID })
	sort.Slice(snap.Inventory, func(i, j int) bool { return snap.Inventory[i].ID < snap.Inventory[j].ID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.snapshot, data, 0600)
}
