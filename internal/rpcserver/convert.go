package rpcserver

import (
	"github.com/shopspring/decimal"

	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
	pb "github.com/severussssss/hp-node-stream/proto/orderbook"
)

func toPBSnapshot(s orderbook.Snapshot) *pb.OrderbookSnapshot {
	return &pb.OrderbookSnapshot{
		MarketID:  uint32(s.MarketID),
		Symbol:    s.Symbol,
		Sequence:  s.Sequence,
		Timestamp: s.TsNs,
		Bids:      toPBLevels(s.Bids),
		Asks:      toPBLevels(s.Asks),
	}
}

func toPBLevels(levels []orderbook.LevelView) []pb.Level {
	out := make([]pb.Level, len(levels))
	for i, l := range levels {
		out[i] = pb.Level{
			Price:      l.Price.String(),
			Size:       l.Size.String(),
			OrderCount: l.OrderCount,
		}
	}
	return out
}

func toPBMarkets(entries []registry.Entry) *pb.MarketsResponse {
	markets := make([]pb.Market, len(entries))
	for i, e := range entries {
		markets[i] = pb.Market{MarketID: uint32(e.MarketID), Symbol: e.Symbol}
	}
	return &pb.MarketsResponse{Markets: markets}
}

func toPBRanked(r stopbook.RankedStopOrder) pb.RankedStopOrder {
	side := "B"
	if r.Order.Side == stopbook.Sell {
		side = "A"
	}
	return pb.RankedStopOrder{
		OrderID:              r.Order.OrderID,
		MarketID:             uint32(r.Order.MarketID),
		Side:                 side,
		TriggerPrice:         r.Order.TriggerPrice.String(),
		Size:                 r.Order.Size.String(),
		User:                 r.Order.User,
		TriggerCondition:     r.Order.TriggerCondition,
		DistanceToTriggerBps: r.DistanceToTriggerBps.String(),
		ExpectedSlippageBps:  r.ExpectedSlippageBps.String(),
		RiskScore:            r.RiskScore.String(),
		RiskLevel:            string(r.RiskLevel),
	}
}

func toPBUnranked(o stopbook.Order) pb.RankedStopOrder {
	side := "B"
	if o.Side == stopbook.Sell {
		side = "A"
	}
	return pb.RankedStopOrder{
		OrderID:          o.OrderID,
		MarketID:         uint32(o.MarketID),
		Side:             side,
		TriggerPrice:     o.TriggerPrice.String(),
		Size:             o.Size.String(),
		User:             o.User,
		TriggerCondition: o.TriggerCondition,
	}
}

func fromFilterRequest(req *pb.StopOrdersRequest) stopbook.FilterSpec {
	spec := stopbook.FilterSpec{
		MarketID:  uint16(req.MarketID),
		HasMarket: req.HasMarketID,
		User:      req.User,
		HasUser:   req.HasUser,
	}
	if req.HasMinNotional {
		if d, err := decimal.NewFromString(req.MinNotional); err == nil {
			spec.MinNotional = d
			spec.HasMinNotional = true
		}
	}
	if req.HasMaxNotional {
		if d, err := decimal.NewFromString(req.MaxNotional); err == nil {
			spec.MaxNotional = d
			spec.HasMaxNotional = true
		}
	}
	if req.HasMaxDistanceFromMid {
		if d, err := decimal.NewFromString(req.MaxDistanceFromMidBps); err == nil {
			spec.MaxDistanceFromMidBps = d
			spec.HasMaxDistanceFromMid = true
		}
	}
	if req.HasSide {
		spec.HasSide = true
		if req.Side == "A" {
			spec.Side = stopbook.Sell
		} else {
			spec.Side = stopbook.Buy
		}
	}
	return spec
}
