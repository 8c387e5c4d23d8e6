package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/severussssss/hp-node-stream/internal/registry"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	reg, err := registry.New([]registry.Entry{{MarketID: 0, Symbol: "BTC"}})
	require.NoError(t, err)
	return New(reg, DefaultLimits())
}

func TestParser_ValidOpenEvent(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"100.5","sz":"2","isTrigger":false,"timestamp":1000},"status":"open","user":"alice","timestampMs":1000}`)

	ev, err := p.Parse(line)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ev.OrderID)
	assert.EqualValues(t, 0, ev.MarketID)
	assert.Equal(t, SideBuy, ev.Side)
	assert.Equal(t, "100.5", ev.Price.String())
	assert.Equal(t, "2", ev.Size.String())
	assert.Equal(t, StatusOpen, ev.Status)
	assert.False(t, ev.IsTrigger)
	assert.EqualValues(t, 1, p.Counters().Total)
}

func TestParser_NumericPriceAndSize(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":2,"coin":"BTC","side":"A","limitPx":101,"sz":3,"timestamp":1000},"status":"open","user":"bob","timestampMs":1000}`)

	ev, err := p.Parse(line)
	require.NoError(t, err)
	assert.Equal(t, SideSell, ev.Side)
	assert.Equal(t, "101", ev.Price.String())
	assert.Equal(t, "3", ev.Size.String())
}

func TestParser_MalformedLine(t *testing.T) {
	p := newTestParser(t)
	_, err := p.Parse([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.EqualValues(t, 1, p.Counters().ParseErrors)
}

func TestParser_UnknownMarket(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"DOGE","side":"B","limitPx":"1","sz":"1"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrUnknownMarket)
	assert.EqualValues(t, 1, p.Counters().ValidationErrors)
}

func TestParser_InvalidPrice(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"-3.2","sz":"1"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestParser_PriceExceedsCeiling(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"20000000","sz":"1"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestParser_InvalidSize(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"1","sz":"0"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestParser_UnsupportedSide(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"X","limitPx":"1","sz":"1"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrUnsupportedSide)
}

func TestParser_MissingFields(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"side":"B","limitPx":"1","sz":"1"},"status":"open","user":"alice"}`)
	_, err := p.Parse(line)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestParser_IsTriggerRoutesRegardlessOfStatus(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"95","sz":"1","isTrigger":true,"triggerCondition":"lte"},"status":"open","user":"alice"}`)
	ev, err := p.Parse(line)
	require.NoError(t, err)
	assert.True(t, ev.IsTrigger)
	assert.Equal(t, "lte", ev.TriggerCondition)
}

func TestParser_UnknownStatusIsCountedNotFatal(t *testing.T) {
	p := newTestParser(t)
	line := []byte(`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"1","sz":"1"},"status":"weird","user":"alice"}`)
	ev, err := p.Parse(line)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Counters().SkippedUnknownStatus)
	assert.Equal(t, Status("weird"), ev.Status)
}
