// Package orderbook holds the wire message types and service contract for
// the subscription server, hand-declared as plain JSON-tagged structs with
// field-number comments preserved so a future protoc pass is a mechanical
// transcription, not a redesign.
package orderbook

// SubscribeRequest requests a live stream of OrderbookSnapshot updates for
// a set of markets.
type SubscribeRequest struct {
	MarketIDs        []uint32 `json:"market_ids"`         // field 1
	Depth            uint32   `json:"depth"`              // field 2
	UpdateIntervalMs uint32   `json:"update_interval_ms"` // field 3
}

// GetOrderbookRequest requests a single point-in-time snapshot.
type GetOrderbookRequest struct {
	MarketID uint32 `json:"market_id"` // field 1
	Depth    uint32 `json:"depth"`     // field 2
}

// Level is one aggregated price level. Price/Size are carried as
// decimal-literal strings rather than float64 -- a deliberate departure
// from a naive f64 wire encoding, so the precision invariant the core book
// already enforces (internal/orderbook's shopspring/decimal aggregation)
// survives the RPC boundary instead of being reintroduced by the codec.
type Level struct {
	Price      string `json:"price"`       // field 1
	Size       string `json:"size"`        // field 2
	OrderCount uint32 `json:"order_count"` // field 3
}

// OrderbookSnapshot is both the SubscribeOrderbook stream element and the
// GetOrderbook response.
type OrderbookSnapshot struct {
	MarketID  uint32  `json:"market_id"` // field 1
	Symbol    string  `json:"symbol"`    // field 2
	Sequence  uint64  `json:"sequence"`  // field 3
	Timestamp int64   `json:"timestamp"` // field 4, unix ns
	Bids      []Level `json:"bids"`      // field 5
	Asks      []Level `json:"asks"`      // field 6
}

// Empty is the zero-field request for GetMarkets.
type Empty struct{}

// Market is one registry entry.
type Market struct {
	MarketID uint32 `json:"market_id"` // field 1
	Symbol   string `json:"symbol"`    // field 2
}

// MarketsResponse is the GetMarkets response.
type MarketsResponse struct {
	Markets []Market `json:"markets"` // field 1
}

// StopOrdersRequest narrows GetStopOrders, mirroring stopbook.FilterSpec.
type StopOrdersRequest struct {
	MarketID              uint32 `json:"market_id"`                 // field 1
	HasMarketID           bool   `json:"has_market_id"`             // field 2
	User                  string `json:"user"`                      // field 3
	HasUser               bool   `json:"has_user"`                  // field 4
	MinNotional           string `json:"min_notional"`              // field 5
	HasMinNotional        bool   `json:"has_min_notional"`          // field 6
	MaxNotional           string `json:"max_notional"`              // field 7
	HasMaxNotional        bool   `json:"has_max_notional"`          // field 8
	MaxDistanceFromMidBps string `json:"max_distance_from_mid_bps"` // field 9
	HasMaxDistanceFromMid bool   `json:"has_max_distance_from_mid"` // field 10
	Side                  string `json:"side"`                      // field 11, "B"|"A"
	HasSide               bool   `json:"has_side"`                  // field 12
	Rank                  bool   `json:"rank"`                      // field 13
}

// RankedStopOrder is one scored entry of the GetStopOrders response.
type RankedStopOrder struct {
	OrderID              uint64 `json:"order_id"`                // field 1
	MarketID             uint32 `json:"market_id"`               // field 2
	Side                 string `json:"side"`                    // field 3
	TriggerPrice         string `json:"trigger_price"`           // field 4
	Size                 string `json:"size"`                    // field 5
	User                 string `json:"user"`                    // field 6
	TriggerCondition     string `json:"trigger_condition"`       // field 7
	DistanceToTriggerBps string `json:"distance_to_trigger_bps"` // field 8
	ExpectedSlippageBps  string `json:"expected_slippage_bps"`   // field 9
	RiskScore            string `json:"risk_score"`              // field 10
	RiskLevel            string `json:"risk_level"`              // field 11
}

// StopOrdersResponse is the GetStopOrders response.
type StopOrdersResponse struct {
	Orders []RankedStopOrder `json:"orders"` // field 1
}

// MarkPriceSubscribeRequest, MarkPriceUpdate, GetMarkPriceRequest and
// MarkPriceResponse are pass-through shapes for the external mark-price
// collaborator; mark-price computation happens elsewhere and this service
// only re-exposes the collaborator's stream.
type MarkPriceSubscribeRequest struct {
	MarketIDs []uint32 `json:"market_ids"` // field 1
}

type MarkPriceUpdate struct {
	MarketID  uint32 `json:"market_id"`  // field 1
	MarkPrice string `json:"mark_price"` // field 2
	Timestamp int64  `json:"timestamp"`  // field 3
}

type GetMarkPriceRequest struct {
	MarketID uint32 `json:"market_id"` // field 1
}

type MarkPriceResponse struct {
	MarketID  uint32 `json:"market_id"`  // field 1
	MarkPrice string `json:"mark_price"` // field 2
	Timestamp int64  `json:"timestamp"`  // field 3
}
