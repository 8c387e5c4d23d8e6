package rpcserver

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarkPriceUpdate is one published mark-price observation.
type MarkPriceUpdate struct {
	MarketID  uint16
	MarkPrice decimal.Decimal
	TsNs      int64
}

// MarkPriceSource is the external collaborator that owns mark-price
// computation; this service only re-exposes the collaborator's stream and
// point lookups over the same gRPC transport.
type MarkPriceSource interface {
	Subscribe(ctx context.Context, marketIDs []uint16) (<-chan MarkPriceUpdate, error)
	Get(ctx context.Context, marketID uint16) (MarkPriceUpdate, error)
}
