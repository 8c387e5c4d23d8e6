package rpcserver

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/severussssss/hp-node-stream/proto/orderbook"
)

// SubscribeMarkPrices forwards to the injected MarkPriceSource collaborator,
// re-exposing its stream over this service's own transport.
func (s *Service) SubscribeMarkPrices(req *pb.MarkPriceSubscribeRequest, stream pb.OrderbookService_SubscribeMarkPricesServer) error {
	if s.marks == nil {
		return status.Error(codes.Unimplemented, "mark price source not configured")
	}

	ctx := stream.Context()
	marketIDs := make([]uint16, len(req.MarketIDs))
	for i, id := range req.MarketIDs {
		marketIDs[i] = uint16(id)
	}

	updates, err := s.marks.Subscribe(ctx, marketIDs)
	if err != nil {
		return status.Errorf(codes.Unavailable, "mark price subscribe failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			msg := &pb.MarkPriceUpdate{
				MarketID:  uint32(u.MarketID),
				MarkPrice: u.MarkPrice.String(),
				Timestamp: u.TsNs,
			}
			if err := stream.Send(msg); err != nil {
				return status.Errorf(codes.Unavailable, "send failed: %v", err)
			}
		}
	}
}

// GetMarkPrice forwards a point lookup to the MarkPriceSource collaborator.
func (s *Service) GetMarkPrice(ctx context.Context, req *pb.GetMarkPriceRequest) (*pb.MarkPriceResponse, error) {
	if s.marks == nil {
		return nil, status.Error(codes.Unimplemented, "mark price source not configured")
	}
	u, err := s.marks.Get(ctx, uint16(req.MarketID))
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "mark price lookup failed: %v", err)
	}
	return &pb.MarkPriceResponse{
		MarketID:  uint32(u.MarketID),
		MarkPrice: u.MarkPrice.String(),
		Timestamp: u.TsNs,
	}, nil
}
