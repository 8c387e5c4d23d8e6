// Package ingest owns the single writer per market: it pulls lines from an
// ingress source, parses and validates them, and routes the result to the
// resting orderbook or the stop-order table, publishing a MarketUpdate per
// effective book mutation.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/broadcast"
	"github.com/severussssss/hp-node-stream/internal/ingest/breaker"
	"github.com/severussssss/hp-node-stream/internal/ingest/parser"
	"github.com/severussssss/hp-node-stream/internal/metrics"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
)

// IngressSource is an opaque, externally supplied lazy sequence of lines.
// The driver does not care whether it is backed by a tailed file, a pipe,
// or a network socket.
type IngressSource interface {
	// Next returns the next line, blocking until one is available or ctx
	// is done / the source is exhausted (io.EOF).
	Next(ctx context.Context) ([]byte, error)
}

// BookSet resolves a market id to its resting book. The mapping is fixed
// and pre-populated at startup; the driver never creates books on the fly.
type BookSet interface {
	Book(marketID uint16) (*orderbook.Book, bool)
	All() []*orderbook.Book
}

// Driver runs the single ingestion loop for one ingress source.
type Driver struct {
	parser  *parser.Parser
	breaker *breaker.Breaker
	books   BookSet
	stops   *stopbook.Table
	sink    broadcast.Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Driver. metrics may be nil, in which case instrumentation is
// skipped.
func New(p *parser.Parser, b *breaker.Breaker, books BookSet, stops *stopbook.Table, sink broadcast.Sink, logger *zap.Logger, m *metrics.Metrics) *Driver {
	return &Driver{parser: p, breaker: b, books: books, stops: stops, sink: sink, logger: logger, metrics: m}
}

// Run pulls from source until ctx is done or the source is exhausted. Each
// line is fed through the breaker-guarded parser; a breaker-open line is
// dropped without parsing so the driver keeps draining the source and
// never back-pressures the producer.
func (d *Driver) Run(ctx context.Context, source IngressSource) error {
	defer d.logBookStats()
	for {
		line, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if d.metrics != nil {
			d.metrics.RecordLineIngested()
		}

		stateBefore := d.breaker.State()
		start := time.Now()
		var event parser.OrderEvent
		parseErr := d.breaker.Attempt(line, func() error {
			ev, err := d.parser.Parse(line)
			if err != nil {
				return err
			}
			event = ev
			return nil
		})
		if d.metrics != nil {
			stateAfter := d.breaker.State()
			d.metrics.RecordParseLatency(time.Since(start))
			d.metrics.RecordBreakerState(int(stateAfter))
			if stateAfter == gobreaker.StateOpen && stateBefore != gobreaker.StateOpen {
				d.metrics.RecordBreakerOpen()
			}
		}
		if parseErr != nil {
			if d.metrics != nil && !errors.Is(parseErr, breaker.ErrOpen) {
				d.metrics.RecordParseError()
			}
			continue
		}

		d.apply(event)
	}
}

// logBookStats surfaces each book's accumulated logic-violation counters
// when the ingestion loop exits.
func (d *Driver) logBookStats() {
	for _, b := range d.books.All() {
		b.LogStats(d.logger)
	}
}

func (d *Driver) apply(ev parser.OrderEvent) {
	if ev.IsTrigger {
		d.applyTrigger(ev)
		return
	}

	book, ok := d.books.Book(ev.MarketID)
	if !ok {
		d.logger.Warn("ingest: no book for market", zap.Uint16("market_id", ev.MarketID))
		return
	}

	mutStart := time.Now()
	var mutated bool
	var kind string
	switch ev.Status {
	case parser.StatusOpen:
		kind = "add"
		mutated = book.Add(orderbook.Order{
			OrderID: ev.OrderID,
			Side:    bookSide(ev.Side),
			Price:   ev.Price,
			Size:    ev.Size,
			TsMs:    ev.TsMs,
			User:    ev.User,
		})
	case parser.StatusFilled, parser.StatusCanceled, parser.StatusRejected:
		kind = "remove"
		mutated = book.Remove(ev.OrderID)
	default:
		return
	}
	if d.metrics != nil {
		d.metrics.RecordBookMutation(kind, time.Since(mutStart))
		if !mutated {
			switch kind {
			case "remove":
				d.metrics.RecordUnknownRemove()
			case "add":
				d.metrics.RecordDuplicateAdd()
			}
		}
	}

	if mutated {
		d.publish(ev.MarketID, book.Sequence())
	}
}

func (d *Driver) applyTrigger(ev parser.OrderEvent) {
	switch ev.Status {
	case parser.StatusOpen:
		d.stops.Upsert(stopbook.Order{
			OrderID:          ev.OrderID,
			MarketID:         ev.MarketID,
			Side:             stopSide(ev.Side),
			TriggerPrice:     ev.Price,
			Size:             ev.Size,
			TsMs:             ev.TsMs,
			User:             ev.User,
			TriggerCondition: ev.TriggerCondition,
		})
	case parser.StatusFilled, parser.StatusCanceled, parser.StatusRejected:
		d.stops.Remove(ev.OrderID)
	default:
		return
	}
	// Stop-table mutations are not themselves top-of-book changes; they are
	// surfaced to subscribers via the dedicated stop-order RPCs, not the
	// book delta stream.
	if d.metrics != nil {
		d.metrics.SetStopOrdersActive(d.stops.Len())
	}
}

func (d *Driver) publish(marketID uint16, sequence uint64) {
	d.sink.Publish(broadcast.MarketUpdate{
		MarketID: marketID,
		Sequence: sequence,
		TsNs:     time.Now().UnixNano(),
	})
	if d.metrics != nil {
		d.metrics.RecordBroadcastSequence(sequence)
	}
}

func bookSide(s parser.Side) orderbook.Side {
	if s == parser.SideBuy {
		return orderbook.Buy
	}
	return orderbook.Sell
}

func stopSide(s parser.Side) stopbook.Side {
	if s == parser.SideBuy {
		return stopbook.Buy
	}
	return stopbook.Sell
}
