package stopbook

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Table indexes stop (trigger) orders by market and by user for O(1)
// upsert/remove and efficient filtered scans.
type Table struct {
	mu       sync.RWMutex
	orders   map[uint64]Order
	byMarket map[uint16]map[uint64]struct{}
	byUser   map[string]map[uint64]struct{}
}

// New builds an empty stop-order table.
func New() *Table {
	return &Table{
		orders:   make(map[uint64]Order),
		byMarket: make(map[uint16]map[uint64]struct{}),
		byUser:   make(map[string]map[uint64]struct{}),
	}
}

// Upsert inserts or replaces a stop order by id.
func (t *Table) Upsert(o Order) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.orders[o.OrderID]; ok {
		t.unindex(existing)
	}
	t.orders[o.OrderID] = o
	t.index(o)
}

// Remove drops a stop order by id. Returns false if unknown.
func (t *Table) Remove(orderID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[orderID]
	if !ok {
		return false
	}
	t.unindex(o)
	delete(t.orders, orderID)
	return true
}

func (t *Table) index(o Order) {
	if t.byMarket[o.MarketID] == nil {
		t.byMarket[o.MarketID] = make(map[uint64]struct{})
	}
	t.byMarket[o.MarketID][o.OrderID] = struct{}{}

	if t.byUser[o.User] == nil {
		t.byUser[o.User] = make(map[uint64]struct{})
	}
	t.byUser[o.User][o.OrderID] = struct{}{}
}

func (t *Table) unindex(o Order) {
	delete(t.byMarket[o.MarketID], o.OrderID)
	if len(t.byMarket[o.MarketID]) == 0 {
		delete(t.byMarket, o.MarketID)
	}
	delete(t.byUser[o.User], o.OrderID)
	if len(t.byUser[o.User]) == 0 {
		delete(t.byUser, o.User)
	}
}

// candidates returns the raw (unfiltered-by-notional/distance/side) order
// set for a market/user combination.
func (t *Table) candidates(filter FilterSpec) []Order {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids map[uint64]struct{}
	switch {
	case filter.HasMarket && filter.HasUser:
		ids = intersect(t.byMarket[filter.MarketID], t.byUser[filter.User])
	case filter.HasMarket:
		ids = t.byMarket[filter.MarketID]
	case filter.HasUser:
		ids = t.byUser[filter.User]
	default:
		out := make([]Order, 0, len(t.orders))
		for _, o := range t.orders {
			out = append(out, o)
		}
		return out
	}

	out := make([]Order, 0, len(ids))
	for id := range ids {
		out = append(out, t.orders[id])
	}
	return out
}

func intersect(a, b map[uint64]struct{}) map[uint64]struct{} {
	if len(a) > len(b) {
		a, b = b, a
	}
	out := make(map[uint64]struct{}, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// MidPriceFunc resolves the current mid price for a market, or false if the
// book is one-sided or empty.
type MidPriceFunc func(marketID uint16) (decimal.Decimal, bool)

// Filter returns stop orders matching market/user plus the optional
// notional/distance/side bounds. midPrice is consulted only when
// MaxDistanceFromMidBps is set.
func (t *Table) Filter(filter FilterSpec, midPrice MidPriceFunc) []Order {
	candidates := t.candidates(filter)
	out := make([]Order, 0, len(candidates))

	for _, o := range candidates {
		if filter.HasSide && o.Side != filter.Side {
			continue
		}
		notional := o.Notional()
		if filter.HasMinNotional && notional.LessThan(filter.MinNotional) {
			continue
		}
		if filter.HasMaxNotional && notional.GreaterThan(filter.MaxNotional) {
			continue
		}
		if filter.HasMaxDistanceFromMid {
			mid, ok := midPrice(o.MarketID)
			if !ok {
				continue
			}
			if distanceBps(o.TriggerPrice, mid).GreaterThan(filter.MaxDistanceFromMidBps) {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// Len returns the total number of resting stop orders.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}
