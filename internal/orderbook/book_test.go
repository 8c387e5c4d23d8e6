package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBook_BasicAddRemove(t *testing.T) {
	b := New(0, "BTC")

	ok := b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")})
	require.True(t, ok)

	snap := b.Snapshot(5)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, dec("100").String(), snap.Bids[0].Price.String())
	assert.Equal(t, dec("1").String(), snap.Bids[0].Size.String())
	assert.Equal(t, uint32(1), snap.Bids[0].OrderCount)
	assert.Empty(t, snap.Asks)
	assert.EqualValues(t, 1, snap.Sequence)

	ok = b.Remove(1)
	require.True(t, ok)

	snap = b.Snapshot(5)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
	assert.EqualValues(t, 2, snap.Sequence)
}

func TestBook_PriceLevelAggregation(t *testing.T) {
	b := New(0, "BTC")

	require.True(t, b.Add(Order{OrderID: 2, Side: Buy, Price: dec("100"), Size: dec("1")}))
	require.True(t, b.Add(Order{OrderID: 3, Side: Buy, Price: dec("100"), Size: dec("2")}))
	require.True(t, b.Add(Order{OrderID: 4, Side: Buy, Price: dec("99"), Size: dec("5")}))

	snap := b.Snapshot(5)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, "100", snap.Bids[0].Price.String())
	assert.Equal(t, "3", snap.Bids[0].Size.String())
	assert.EqualValues(t, 2, snap.Bids[0].OrderCount)
	assert.Equal(t, "99", snap.Bids[1].Price.String())
	assert.Equal(t, "5", snap.Bids[1].Size.String())

	require.True(t, b.Remove(3))

	snap = b.Snapshot(5)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, "100", snap.Bids[0].Price.String())
	assert.Equal(t, "1", snap.Bids[0].Size.String())
	assert.EqualValues(t, 1, snap.Bids[0].OrderCount)
}

func TestBook_DuplicateAddIsNoOp(t *testing.T) {
	b := New(0, "BTC")

	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")}))
	seqBefore := b.Sequence()

	ok := b.Add(Order{OrderID: 1, Side: Buy, Price: dec("200"), Size: dec("5")})
	assert.False(t, ok)
	assert.Equal(t, seqBefore, b.Sequence())
	assert.EqualValues(t, 1, b.Stats().DuplicateAddCount)

	snap := b.Snapshot(5)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, "100", snap.Bids[0].Price.String())
}

func TestBook_RemoveUnknownIsNoOp(t *testing.T) {
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")}))
	seqBefore := b.Sequence()

	ok := b.Remove(999)
	assert.False(t, ok)
	assert.Equal(t, seqBefore, b.Sequence())
	assert.EqualValues(t, 1, b.Stats().UnknownRemoveCount)
}

func TestBook_ZeroSizeLevelIsDropped(t *testing.T) {
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")}))
	require.True(t, b.Remove(1))

	snap := b.Snapshot(50)
	assert.Empty(t, snap.Bids)
}

func TestBook_DepthZeroReturnsEmptyButValidSequence(t *testing.T) {
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")}))

	snap := b.Snapshot(0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
	assert.EqualValues(t, 1, snap.Sequence)
}

func TestBook_SnapshotDepthCapping(t *testing.T) {
	b := New(0, "BTC")
	for i := uint64(0); i < 3; i++ {
		require.True(t, b.Add(Order{OrderID: i + 1, Side: Buy, Price: decimal.NewFromInt(int64(100 - i)), Size: dec("1")}))
	}

	snap := b.Snapshot(10)
	assert.Len(t, snap.Bids, 3)

	snap = b.Snapshot(2)
	assert.Len(t, snap.Bids, 2)
	assert.Equal(t, "100", snap.Bids[0].Price.String())
	assert.Equal(t, "99", snap.Bids[1].Price.String())
}

func TestBook_AsksAreAscending(t *testing.T) {
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 1, Side: Sell, Price: dec("105"), Size: dec("1")}))
	require.True(t, b.Add(Order{OrderID: 2, Side: Sell, Price: dec("101"), Size: dec("1")}))
	require.True(t, b.Add(Order{OrderID: 3, Side: Sell, Price: dec("103"), Size: dec("1")}))

	snap := b.Snapshot(5)
	require.Len(t, snap.Asks, 3)
	assert.Equal(t, "101", snap.Asks[0].Price.String())
	assert.Equal(t, "103", snap.Asks[1].Price.String())
	assert.Equal(t, "105", snap.Asks[2].Price.String())
}

func TestBook_AddRemoveRoundTrip(t *testing.T) {
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 5, Side: Buy, Price: dec("99"), Size: dec("5")}))
	before := b.Snapshot(50)

	require.True(t, b.Add(Order{OrderID: 6, Side: Buy, Price: dec("50"), Size: dec("1")}))
	require.True(t, b.Remove(6))

	after := b.Snapshot(50)
	assert.Equal(t, before.Bids, after.Bids)
	assert.Equal(t, before.Asks, after.Asks)
	assert.Equal(t, before.Sequence+2, after.Sequence)
}

func TestBook_BestBidAsk(t *testing.T) {
	b := New(0, "BTC")
	_, ok := b.BestBid()
	assert.False(t, ok)

	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("100"), Size: dec("1")}))
	require.True(t, b.Add(Order{OrderID: 2, Side: Sell, Price: dec("101"), Size: dec("2")}))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "100", bid.Price.String())

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "101", ask.Price.String())

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.Equal(t, "100.5", mid.String())
}

func TestBook_TriggerOrdersNeverInBook(t *testing.T) {
	// Trigger orders are routed by the ingestion driver to stopbook and
	// never reach Book.Add at all; this test documents that invariant at
	// the boundary this package owns: nothing in Book's API accepts an
	// is-trigger flag, so there is no path for one to appear here.
	b := New(0, "BTC")
	require.True(t, b.Add(Order{OrderID: 1, Side: Buy, Price: dec("95"), Size: dec("1")}))
	snap := b.Snapshot(5)
	require.Len(t, snap.Bids, 1)
}
