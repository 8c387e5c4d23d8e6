package orderbook

import "github.com/severussssss/hp-node-stream/internal/stopbook"

// OppositeLevels implements stopbook.OppositeBookView, translating this
// book's own Side/LevelView types into stopbook's decoupled equivalents so
// the risk ranker can estimate slippage without stopbook importing this
// package.
func (b *Book) OppositeLevels(side stopbook.Side, depth int) []stopbook.OppositeLevel {
	var views []LevelView
	b.mu.RLock()
	if side == stopbook.Buy {
		views = b.bids.top(depth)
	} else {
		views = b.asks.top(depth)
	}
	b.mu.RUnlock()

	out := make([]stopbook.OppositeLevel, len(views))
	for i, v := range views {
		out[i] = stopbook.OppositeLevel{Price: v.Price, Size: v.Size}
	}
	return out
}
