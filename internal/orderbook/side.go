package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// priceKey canonicalizes a decimal price so that mathematically equal prices
// arriving with different textual representations (e.g. "100" vs "100.00")
// always aggregate into the same level.
func priceKey(d decimal.Decimal) string {
	return d.Rat().RatString()
}

// bookSide is one side (bids or asks) of a book: a set of price levels kept
// in price priority order. Bids are kept descending, asks ascending; the
// ordering is expressed once via the `desc` flag rather than duplicating the
// comparison logic per side.
type bookSide struct {
	desc   bool
	levels map[string]*level
	order  []string // price keys, kept sorted per `desc`
}

func newBookSide(desc bool) *bookSide {
	return &bookSide{
		desc:   desc,
		levels: make(map[string]*level),
	}
}

func (s *bookSide) less(a, b decimal.Decimal) bool {
	if s.desc {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// getOrCreate returns the level for price, creating and inserting it into
// the ordered slice at the correct position if absent. The insertion point
// is the first existing level that does not strictly precede `price` in
// priority order (sort.Search requires the predicate to be monotonic over
// the already-sorted slice).
func (s *bookSide) getOrCreate(price decimal.Decimal) *level {
	key := priceKey(price)
	if lv, ok := s.levels[key]; ok {
		return lv
	}

	lv := newLevel(price)
	s.levels[key] = lv

	pos := sort.Search(len(s.order), func(i int) bool {
		existing := s.levels[s.order[i]].price
		return !s.less(existing, price)
	})
	s.order = append(s.order, "")
	copy(s.order[pos+1:], s.order[pos:])
	s.order[pos] = key

	return lv
}

// dropIfEmpty removes a level from the side once it has no resting orders;
// empty levels are never retained as tombstones.
func (s *bookSide) dropIfEmpty(price decimal.Decimal) {
	key := priceKey(price)
	lv, ok := s.levels[key]
	if !ok || !lv.empty() {
		return
	}
	delete(s.levels, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// top returns up to `depth` levels in priority order.
func (s *bookSide) top(depth int) []LevelView {
	if depth <= 0 || len(s.order) == 0 {
		return nil
	}
	if depth > len(s.order) {
		depth = len(s.order)
	}
	out := make([]LevelView, 0, depth)
	for _, key := range s.order[:depth] {
		lv := s.levels[key]
		out = append(out, LevelView{
			Price:      lv.price,
			Size:       lv.aggregateSize,
			OrderCount: lv.orderCount(),
		})
	}
	return out
}

// best returns the top-of-book level, if any.
func (s *bookSide) best() (LevelView, bool) {
	if len(s.order) == 0 {
		return LevelView{}, false
	}
	lv := s.levels[s.order[0]]
	return LevelView{Price: lv.price, Size: lv.aggregateSize, OrderCount: lv.orderCount()}, true
}
