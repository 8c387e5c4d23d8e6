// Package orderbook implements the per-market Level-2 book: single-writer
// add/remove/snapshot with strict price/time priority and aggregation at
// price levels. This is a pure resting book: no matching, orders rest until
// explicitly removed.
package orderbook

import (
	"container/list"
	"time"

	"github.com/shopspring/decimal"
)

// Side is a book side.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Order is immutable once accepted.
type Order struct {
	OrderID uint64
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	TsMs    uint64
	User    string
}

// LevelView is one aggregated, read-only price level as exposed in a
// snapshot.
type LevelView struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	OrderCount uint32
}

// Snapshot is a point-in-time materialization of a book at a specific
// sequence.
type Snapshot struct {
	MarketID uint16
	Symbol   string
	Sequence uint64
	TsNs     int64
	Bids     []LevelView
	Asks     []LevelView
}

// level is the mutable, FIFO-ordered aggregate at one price.
type level struct {
	price         decimal.Decimal
	aggregateSize decimal.Decimal
	fifo          *list.List               // of uint64 order ids, push-back arrival order
	index         map[uint64]*list.Element // order id -> its fifo element, for O(1) removal
}

func newLevel(price decimal.Decimal) *level {
	return &level{
		price: price,
		fifo:  list.New(),
		index: make(map[uint64]*list.Element),
	}
}

func (l *level) add(orderID uint64, size decimal.Decimal) {
	el := l.fifo.PushBack(orderID)
	l.index[orderID] = el
	l.aggregateSize = l.aggregateSize.Add(size)
}

func (l *level) remove(orderID uint64, size decimal.Decimal) {
	if el, ok := l.index[orderID]; ok {
		l.fifo.Remove(el)
		delete(l.index, orderID)
		l.aggregateSize = l.aggregateSize.Sub(size)
	}
}

func (l *level) empty() bool {
	return l.fifo.Len() == 0
}

func (l *level) orderCount() uint32 {
	return uint32(l.fifo.Len())
}

func nowNs() int64 {
	return time.Now().UnixNano()
}
