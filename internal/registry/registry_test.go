package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SymbolMarketIDRoundTrip(t *testing.T) {
	r, err := New([]Entry{{MarketID: 0, Symbol: "BTC"}, {MarketID: 1, Symbol: "ETH"}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	id, err := r.MarketID("BTC")
	require.NoError(t, err)
	assert.EqualValues(t, 0, id)

	sym, ok := r.Symbol(1)
	require.True(t, ok)
	assert.Equal(t, "ETH", sym)
}

func TestRegistry_UnknownMarket(t *testing.T) {
	r, err := New([]Entry{{MarketID: 0, Symbol: "BTC"}})
	require.NoError(t, err)

	_, err = r.MarketID("DOGE")
	assert.ErrorIs(t, err, ErrUnknownMarket)

	_, ok := r.Symbol(99)
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := New([]Entry{{MarketID: 0, Symbol: "BTC"}, {MarketID: 1, Symbol: "BTC"}})
	assert.Error(t, err)

	_, err = New([]Entry{{MarketID: 0, Symbol: "BTC"}, {MarketID: 0, Symbol: "ETH"}})
	assert.Error(t, err)
}
