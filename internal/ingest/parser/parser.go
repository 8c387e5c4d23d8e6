// Package parser decodes one line-delimited ingress record (an outer
// status/user/timestampMs wrapping an inner order object) into a typed
// OrderEvent, validating side, price, size and market along the way.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/severussssss/hp-node-stream/internal/registry"
)

// Side is the normalized order side.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// Status is the outer event status.
type Status string

const (
	StatusOpen     Status = "open"
	StatusFilled   Status = "filled"
	StatusCanceled Status = "canceled"
	StatusRejected Status = "perpMarginRejected"
)

// Error kinds, counted but never fatal to the ingestion driver.
var (
	ErrMalformed       = errors.New("parser: malformed line")
	ErrUnknownMarket   = errors.New("parser: unknown market")
	ErrInvalidPrice    = errors.New("parser: invalid price")
	ErrInvalidSize     = errors.New("parser: invalid size")
	ErrUnsupportedSide = errors.New("parser: unsupported side")
	ErrMissingField    = errors.New("parser: missing field")
)

// OrderEvent is the typed, validated decode of one ingress line.
type OrderEvent struct {
	OrderID          uint64
	MarketID         uint16
	Side             Side
	Price            decimal.Decimal
	Size             decimal.Decimal
	TsMs             uint64
	User             string
	IsTrigger        bool
	TriggerCondition string
	Status           Status
}

// rawOrder is the inner order object of the wire record.
type rawOrder struct {
	OID              uint64      `json:"oid"`
	Coin             string      `json:"coin"`
	Side             string      `json:"side"`
	LimitPx          FlexDecimal `json:"limitPx"`
	Sz               FlexDecimal `json:"sz"`
	IsTrigger        bool        `json:"isTrigger"`
	TriggerCondition string      `json:"triggerCondition"`
	Timestamp        uint64      `json:"timestamp"`
}

// rawEvent is the outer wire record.
type rawEvent struct {
	Order       rawOrder `json:"order"`
	Status      string   `json:"status"`
	User        string   `json:"user"`
	TimestampMs uint64   `json:"timestampMs"`
}

// Limits bounds the accepted price/size range (defaults: price
// <= 10,000,000, size <= 1,000,000).
type Limits struct {
	MaxPrice decimal.Decimal
	MaxSize  decimal.Decimal
}

// DefaultLimits returns the default ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxPrice: decimal.NewFromInt(10_000_000),
		MaxSize:  decimal.NewFromInt(1_000_000),
	}
}

// Parser decodes and validates ingress lines against a market registry and
// configured limits, exposing atomic counters for the circuit breaker.
type Parser struct {
	registry *registry.Registry
	limits   Limits

	total                atomic.Int64
	parseErrors          atomic.Int64
	validationErrors     atomic.Int64
	skippedUnknownStatus atomic.Int64
}

// New builds a Parser bound to the given registry and validation limits.
func New(reg *registry.Registry, limits Limits) *Parser {
	return &Parser{registry: reg, limits: limits}
}

// Counters is a point-in-time read of the parser's atomic counters.
type Counters struct {
	Total                int64
	ParseErrors          int64
	ValidationErrors     int64
	SkippedUnknownStatus int64
}

// Counters composes a single-observation snapshot of all counters.
func (p *Parser) Counters() Counters {
	return Counters{
		Total:                p.total.Load(),
		ParseErrors:          p.parseErrors.Load(),
		ValidationErrors:     p.validationErrors.Load(),
		SkippedUnknownStatus: p.skippedUnknownStatus.Load(),
	}
}

// Parse decodes and validates a single ingress line.
func (p *Parser) Parse(line []byte) (OrderEvent, error) {
	p.total.Add(1)

	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		p.parseErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if raw.Order.Coin == "" || raw.User == "" {
		p.validationErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: order.coin/user", ErrMissingField)
	}

	marketID, err := p.registry.MarketID(raw.Order.Coin)
	if err != nil {
		p.validationErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: %q", ErrUnknownMarket, raw.Order.Coin)
	}

	var side Side
	switch raw.Order.Side {
	case "B":
		side = SideBuy
	case "A":
		side = SideSell
	default:
		p.validationErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedSide, raw.Order.Side)
	}

	price := raw.Order.LimitPx.Decimal
	if !price.IsPositive() || price.GreaterThan(p.limits.MaxPrice) {
		p.validationErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: %s", ErrInvalidPrice, price.String())
	}

	size := raw.Order.Sz.Decimal
	if !size.IsPositive() || size.GreaterThan(p.limits.MaxSize) {
		p.validationErrors.Add(1)
		return OrderEvent{}, fmt.Errorf("%w: %s", ErrInvalidSize, size.String())
	}

	status := Status(raw.Status)
	switch status {
	case StatusOpen, StatusFilled, StatusCanceled, StatusRejected:
	default:
		p.skippedUnknownStatus.Add(1)
	}

	return OrderEvent{
		OrderID:          raw.Order.OID,
		MarketID:         marketID,
		Side:             side,
		Price:            price,
		Size:             size,
		TsMs:             raw.Order.Timestamp,
		User:             raw.User,
		IsTrigger:        raw.Order.IsTrigger,
		TriggerCondition: raw.Order.TriggerCondition,
		Status:           status,
	}, nil
}
