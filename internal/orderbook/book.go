package orderbook

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var two = decimal.NewFromInt(2)

// locatorEntry records where a resting order lives, for O(1) removal.
type locatorEntry struct {
	side  Side
	price decimal.Decimal
	size  decimal.Decimal
}

// Book is a single-writer, many-reader per-market orderbook. The writer
// (the ingestion driver) is the only goroutine permitted to call Add/Remove;
// readers call Snapshot/BestBid/BestAsk concurrently. A per-book RWMutex
// guards level mutation, so a snapshot never observes a level whose
// aggregate diverges from its resting orders.
type Book struct {
	MarketID uint16
	Symbol   string

	mu       sync.RWMutex
	bids     *bookSide
	asks     *bookSide
	locator  map[uint64]locatorEntry
	sequence atomic.Uint64

	unknownRemoveCount atomic.Int64
	duplicateAddCount  atomic.Int64
}

// New builds an empty book for one market.
func New(marketID uint16, symbol string) *Book {
	return &Book{
		MarketID: marketID,
		Symbol:   symbol,
		bids:     newBookSide(true),
		asks:     newBookSide(false),
		locator:  make(map[uint64]locatorEntry),
	}
}

// Add inserts a resting order. No-op (and no sequence bump) if the order id
// already exists.
func (b *Book) Add(o Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.locator[o.OrderID]; exists {
		b.duplicateAddCount.Add(1)
		return false
	}

	side := b.sideFor(o.Side)
	lv := side.getOrCreate(o.Price)
	lv.add(o.OrderID, o.Size)
	b.locator[o.OrderID] = locatorEntry{side: o.Side, price: o.Price, size: o.Size}

	b.sequence.Add(1)
	return true
}

// Remove drops a resting order by id. No-op (and no sequence bump) if the id
// is unknown.
func (b *Book) Remove(orderID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, exists := b.locator[orderID]
	if !exists {
		b.unknownRemoveCount.Add(1)
		return false
	}

	side := b.sideFor(entry.side)
	key := priceKey(entry.price)
	if lv, ok := side.levels[key]; ok {
		lv.remove(orderID, entry.size)
		side.dropIfEmpty(entry.price)
	}
	delete(b.locator, orderID)

	b.sequence.Add(1)
	return true
}

func (b *Book) sideFor(s Side) *bookSide {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Snapshot materializes the current top-depth state of the book.
func (b *Book) Snapshot(depth int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Snapshot{
		MarketID: b.MarketID,
		Symbol:   b.Symbol,
		Sequence: b.sequence.Load(),
		TsNs:     nowNs(),
		Bids:     b.bids.top(depth),
		Asks:     b.asks.top(depth),
	}
}

// BestBid returns the top bid level, if any.
func (b *Book) BestBid() (LevelView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.best()
}

// BestAsk returns the top ask level, if any.
func (b *Book) BestAsk() (LevelView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.best()
}

// MidPrice returns (bestBid+bestAsk)/2, or false if either side is empty.
func (b *Book) MidPrice() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).DivRound(two, 8), true
}

// Sequence returns the current mutation sequence without materializing a
// full snapshot.
func (b *Book) Sequence() uint64 {
	return b.sequence.Load()
}

// Stats exposes logic-violation counters (double-add, double-remove); these
// are counted, never fatal.
type Stats struct {
	UnknownRemoveCount int64
	DuplicateAddCount  int64
}

// Stats returns the book's logic-violation counters.
func (b *Book) Stats() Stats {
	return Stats{
		UnknownRemoveCount: b.unknownRemoveCount.Load(),
		DuplicateAddCount:  b.duplicateAddCount.Load(),
	}
}

// LogStats emits the book's violation counters at Debug level.
func (b *Book) LogStats(logger *zap.Logger) {
	st := b.Stats()
	if st.UnknownRemoveCount == 0 && st.DuplicateAddCount == 0 {
		return
	}
	logger.Debug("orderbook logic violations",
		zap.Uint16("market_id", b.MarketID),
		zap.Int64("unknown_remove", st.UnknownRemoveCount),
		zap.Int64("duplicate_add", st.DuplicateAddCount),
	)
}
