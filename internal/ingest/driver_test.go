package ingest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/broadcast"
	"github.com/severussssss/hp-node-stream/internal/ingest/breaker"
	"github.com/severussssss/hp-node-stream/internal/ingest/parser"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
)

func newTestDriver(t *testing.T) (*Driver, *orderbook.Set, *stopbook.Table, *broadcast.Ring) {
	t.Helper()
	reg, err := registry.New([]registry.Entry{{MarketID: 0, Symbol: "BTC"}})
	require.NoError(t, err)

	books := orderbook.NewSet(map[uint16]string{0: "BTC"})
	stops := stopbook.New()
	ring := broadcast.New(100)
	p := parser.New(reg, parser.DefaultLimits())
	b := breaker.New("test", breaker.Config{ErrorThreshold: 1000, ErrorWindow: time.Minute}, zap.NewNop())

	d := New(p, b, books, stops, ring, zap.NewNop(), nil)
	return d, books, stops, ring
}

func TestDriver_OpenThenCancelMutatesBook(t *testing.T) {
	d, books, _, _ := newTestDriver(t)

	lines := strings.Join([]string{
		`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"100","sz":"1"},"status":"open","user":"alice"}`,
		`{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"100","sz":"1"},"status":"canceled","user":"alice"}`,
	}, "\n")

	src := NewLineSource(strings.NewReader(lines), 0)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := d.Run(ctx, src)
	assert.ErrorIs(t, err, io.EOF)

	book, _ := books.Book(0)
	snap := book.Snapshot(5)
	assert.Empty(t, snap.Bids)
	assert.EqualValues(t, 2, snap.Sequence)
}

func TestDriver_TriggerOrderRoutesToStopTable(t *testing.T) {
	d, books, stops, _ := newTestDriver(t)

	line := `{"order":{"oid":5,"coin":"BTC","side":"B","limitPx":"95","sz":"1","isTrigger":true},"status":"open","user":"alice"}`
	src := NewLineSource(strings.NewReader(line), 0)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx, src)

	book, _ := books.Book(0)
	assert.Empty(t, book.Snapshot(5).Bids)
	assert.Equal(t, 1, stops.Len())
}

func TestDriver_PublishesMarketUpdateOnMutation(t *testing.T) {
	d, _, _, ring := newTestDriver(t)
	cursor := ring.Subscribe()

	line := `{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"100","sz":"1"},"status":"open","user":"alice"}`
	src := NewLineSource(strings.NewReader(line), 0)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx, src)

	update, lagged, _, err := cursor.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, lagged)
	assert.EqualValues(t, 0, update.MarketID)
	assert.EqualValues(t, 1, update.Sequence)
}

func TestDriver_ParseErrorsDoNotMutateBook(t *testing.T) {
	d, books, _, _ := newTestDriver(t)

	line := `{"order":{"oid":1,"coin":"BTC","side":"B","limitPx":"-3.2","sz":"1"},"status":"open","user":"alice"}`
	src := NewLineSource(strings.NewReader(line), 0)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx, src)

	book, _ := books.Book(0)
	assert.EqualValues(t, 0, book.Sequence())
}
