package stopbook

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	tenK      = decimal.NewFromInt(10_000) // basis-point scale
	lowBound  = decimal.NewFromFloat(33.3)
	highBound = decimal.NewFromFloat(66.6)
)

// distanceBps returns |trigger-mid|/mid expressed in basis points.
func distanceBps(trigger, mid decimal.Decimal) decimal.Decimal {
	if mid.IsZero() {
		return decimal.Zero
	}
	diff := trigger.Sub(mid).Abs()
	return diff.Div(mid).Mul(tenK)
}

// RiskRanker scores stop orders against a live book, caching each market's
// mid-price lookup for a short window since ranking is a read-path
// convenience, not a correctness-critical path.
type RiskRanker struct {
	table   *Table
	weights RiskWeights
	midTTL  time.Duration
	mids    *cache.Cache
}

// NewRiskRanker builds a ranker backed by table, using midTTL (default
// 250ms) as the mid-price cache lifetime.
func NewRiskRanker(table *Table, weights RiskWeights, midTTL time.Duration) *RiskRanker {
	if midTTL <= 0 {
		midTTL = 250 * time.Millisecond
	}
	return &RiskRanker{
		table:   table,
		weights: weights,
		midTTL:  midTTL,
		mids:    cache.New(midTTL, 2*midTTL),
	}
}

func (r *RiskRanker) cachedMid(marketID uint16, fresh MidPriceFunc) (decimal.Decimal, bool) {
	key := fmt.Sprintf("mid:%d", marketID)
	if v, ok := r.mids.Get(key); ok {
		entry := v.(midEntry)
		return entry.price, entry.ok
	}
	price, ok := fresh(marketID)
	r.mids.Set(key, midEntry{price: price, ok: ok}, r.midTTL)
	return price, ok
}

type midEntry struct {
	price decimal.Decimal
	ok    bool
}

// Rank scores every stop order in marketID matching filter using the
// combined formula risk = distance_weight*f_dist + slippage_weight*f_slip,
// rescaled to 0-100 and bucketed LOW/MEDIUM/HIGH.
// f_dist decreases monotonically with distance (closer to mid = riskier):
// modeled as 100 minus the distance in percent (distanceBps/100), clamped to
// [0,100]. f_slip increases
// monotonically with expected slippage consuming the order's size against
// the opposite side of the book, itself expressed in basis points off the
// best opposite price and clamped to [0,100].
func (r *RiskRanker) Rank(marketID uint16, filter FilterSpec, fresh MidPriceFunc, opposite OppositeBookView) []RankedStopOrder {
	filter.HasMarket = true
	filter.MarketID = marketID

	midFn := func(mktID uint16) (decimal.Decimal, bool) {
		return r.cachedMid(mktID, fresh)
	}

	matches := r.table.Filter(filter, midFn)
	mid, midOK := midFn(marketID)

	out := make([]RankedStopOrder, 0, len(matches))
	for _, o := range matches {
		var distBps, slipBps decimal.Decimal
		if midOK {
			distBps = distanceBps(o.TriggerPrice, mid)
		}
		slipBps = expectedSlippageBps(o, opposite)

		fDist := clamp0to100(hundred.Sub(distBps.Div(hundred)))
		fSlip := clamp0to100(slipBps)

		score := r.weights.DistanceWeight.Mul(fDist).Add(r.weights.SlippageWeight.Mul(fSlip))
		score = clamp0to100(score)

		out = append(out, RankedStopOrder{
			Order:                o,
			DistanceToTriggerBps: distBps,
			ExpectedSlippageBps:  slipBps,
			RiskScore:            score,
			RiskLevel:            bucket(score),
		})
	}
	return out
}

// expectedSlippageBps walks the opposite side of the book, consuming
// o.Size level by level, and returns the basis-point gap between the
// best opposite price and the volume-weighted average fill price. Returns
// zero if the opposite side cannot absorb any size or is absent.
func expectedSlippageBps(o Order, opposite OppositeBookView) decimal.Decimal {
	if opposite == nil {
		return decimal.Zero
	}
	oppositeSide := Sell
	if o.Side == Sell {
		oppositeSide = Buy
	}
	levels := opposite.OppositeLevels(oppositeSide, 50)
	if len(levels) == 0 {
		return decimal.Zero
	}

	best := levels[0].Price
	remaining := o.Size
	notionalSum := decimal.Zero
	filled := decimal.Zero

	for _, lv := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := lv.Size
		if take.GreaterThan(remaining) {
			take = remaining
		}
		notionalSum = notionalSum.Add(take.Mul(lv.Price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	if filled.IsZero() || best.IsZero() {
		return decimal.Zero
	}
	avgFill := notionalSum.Div(filled)
	return avgFill.Sub(best).Abs().Div(best).Mul(tenK)
}

func clamp0to100(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}

func bucket(score decimal.Decimal) RiskLevel {
	switch {
	case score.LessThan(lowBound):
		return RiskLow
	case score.LessThan(highBound):
		return RiskMedium
	default:
		return RiskHigh
	}
}
