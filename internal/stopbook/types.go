// Package stopbook holds trigger (stop) orders per market, supporting
// filtered reads and a risk-ranking read path. This package never triggers
// or routes orders, it only indexes and scores them for RPC reads; trigger
// orders never enter the resting book.
package stopbook

import "github.com/shopspring/decimal"

// Side mirrors orderbook.Side without importing it, keeping this package
// independent of the resting-book package.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Order is a resting trigger order.
type Order struct {
	OrderID          uint64
	MarketID         uint16
	Side             Side
	TriggerPrice     decimal.Decimal
	Size             decimal.Decimal
	TsMs             uint64
	User             string
	TriggerCondition string
}

// Notional is TriggerPrice * Size, used by FilterSpec's notional bounds.
func (o Order) Notional() decimal.Decimal {
	return o.TriggerPrice.Mul(o.Size)
}

// FilterSpec narrows a Filter/Rank read. Zero-value fields mean "no bound".
type FilterSpec struct {
	MarketID              uint16
	HasMarket             bool
	User                  string
	HasUser               bool
	MinNotional           decimal.Decimal
	HasMinNotional        bool
	MaxNotional           decimal.Decimal
	HasMaxNotional        bool
	MaxDistanceFromMidBps decimal.Decimal
	HasMaxDistanceFromMid bool
	Side                  Side
	HasSide               bool
}

// RiskLevel buckets a combined risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RankedStopOrder is one scored result of RiskRanker.Rank.
type RankedStopOrder struct {
	Order                Order
	DistanceToTriggerBps decimal.Decimal
	ExpectedSlippageBps  decimal.Decimal
	RiskScore            decimal.Decimal
	RiskLevel            RiskLevel
}

// RiskWeights are the configurable coefficients for the combined score.
type RiskWeights struct {
	DistanceWeight decimal.Decimal
	SlippageWeight decimal.Decimal
}

// DefaultRiskWeights returns the standard coefficients (0.6 / 0.4).
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		DistanceWeight: decimal.NewFromFloat(0.6),
		SlippageWeight: decimal.NewFromFloat(0.4),
	}
}

// OppositeLevel is the minimal view of one opposite-side price level needed
// to estimate slippage; it decouples this package from orderbook's level
// representation.
type OppositeLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OppositeBookView exposes the side of the book opposite a stop order's own
// side, ordered by priority (best first), for slippage estimation.
type OppositeBookView interface {
	OppositeLevels(side Side, depth int) []OppositeLevel
}
