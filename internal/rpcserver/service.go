// Package rpcserver implements the subscription server over the wire
// contract declared in proto/orderbook: live orderbook streams, point
// snapshots, market listing and stop-order queries.
package rpcserver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/severussssss/hp-node-stream/internal/broadcast"
	"github.com/severussssss/hp-node-stream/internal/metrics"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
	pb "github.com/severussssss/hp-node-stream/proto/orderbook"
)

// Config controls server-side RPC defaults.
type Config struct {
	DepthDefault        uint32
	DepthMax            uint32
	OutboundCapacity    int
	SnapshotBurstRate   int // initial/resync snapshots per second, across all subscribers, before each further one is delayed
	MaxConsecutiveDrops int // forced-drops in a row before a subscriber is disconnected
}

// Service implements pb.OrderbookServiceServer.
type Service struct {
	pb.UnimplementedOrderbookServiceServer

	cfg      Config
	registry *registry.Registry
	books    *orderbook.Set
	stops    *stopbook.Table
	ranker   *stopbook.RiskRanker
	ring     *broadcast.Ring
	marks    MarkPriceSource
	logger   *zap.Logger
	metrics  *metrics.Metrics

	dispatch        *ants.Pool
	snapshotLimiter *limiter.Limiter
}

// New builds the subscription service. dispatch bounds the goroutines
// spawned to pump each subscriber's cursor; marks may be nil, in which case
// SubscribeMarkPrices/GetMarkPrice return Unimplemented. m may be nil, in
// which case instrumentation is skipped.
func New(cfg Config, reg *registry.Registry, books *orderbook.Set, stops *stopbook.Table, ranker *stopbook.RiskRanker, ring *broadcast.Ring, marks MarkPriceSource, dispatch *ants.Pool, logger *zap.Logger, m *metrics.Metrics) *Service {
	if cfg.DepthDefault == 0 {
		cfg.DepthDefault = 50
	}
	if cfg.DepthMax == 0 {
		cfg.DepthMax = 500
	}
	if cfg.OutboundCapacity <= 0 {
		cfg.OutboundCapacity = 1000
	}
	if cfg.SnapshotBurstRate <= 0 {
		cfg.SnapshotBurstRate = 2000
	}
	if cfg.MaxConsecutiveDrops <= 0 {
		cfg.MaxConsecutiveDrops = 5
	}

	store := memory.NewStore()
	rate := limiter.Rate{Period: time.Second, Limit: int64(cfg.SnapshotBurstRate)}

	return &Service{
		cfg:             cfg,
		registry:        reg,
		books:           books,
		stops:           stops,
		ranker:          ranker,
		ring:            ring,
		marks:           marks,
		logger:          logger,
		metrics:         m,
		dispatch:        dispatch,
		snapshotLimiter: limiter.New(store, rate),
	}
}

func (s *Service) clampDepth(requested uint32) int {
	d := requested
	if d == 0 {
		d = s.cfg.DepthDefault
	}
	if d > s.cfg.DepthMax {
		d = s.cfg.DepthMax
	}
	return int(d)
}

// GetOrderbook returns a single point-in-time snapshot.
func (s *Service) GetOrderbook(ctx context.Context, req *pb.GetOrderbookRequest) (*pb.OrderbookSnapshot, error) {
	book, ok := s.books.Book(uint16(req.MarketID))
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown market %d", req.MarketID)
	}
	return toPBSnapshot(book.Snapshot(s.clampDepth(req.Depth))), nil
}

// GetMarkets returns the registry contents.
func (s *Service) GetMarkets(ctx context.Context, _ *pb.Empty) (*pb.MarketsResponse, error) {
	return toPBMarkets(s.registry.Markets()), nil
}

// GetStopOrders returns filtered, optionally ranked stop orders for a
// market.
func (s *Service) GetStopOrders(ctx context.Context, req *pb.StopOrdersRequest) (*pb.StopOrdersResponse, error) {
	filter := fromFilterRequest(req)
	midFn := s.midPriceFunc()

	if req.Rank && req.HasMarketID {
		var opposite stopbook.OppositeBookView
		if b, ok := s.books.Book(uint16(req.MarketID)); ok {
			opposite = b
		}
		rankStart := time.Now()
		ranked := s.ranker.Rank(uint16(req.MarketID), filter, midFn, opposite)
		if s.metrics != nil {
			s.metrics.RecordRankLatency(time.Since(rankStart))
		}
		out := make([]pb.RankedStopOrder, len(ranked))
		for i, r := range ranked {
			out[i] = toPBRanked(r)
		}
		return &pb.StopOrdersResponse{Orders: out}, nil
	}

	matches := s.stops.Filter(filter, midFn)
	out := make([]pb.RankedStopOrder, len(matches))
	for i, o := range matches {
		out[i] = toPBUnranked(o)
	}
	return &pb.StopOrdersResponse{Orders: out}, nil
}

func (s *Service) midPriceFunc() stopbook.MidPriceFunc {
	return func(marketID uint16) (decimal.Decimal, bool) {
		b, ok := s.books.Book(marketID)
		if !ok {
			return decimal.Zero, false
		}
		return b.MidPrice()
	}
}

// SubscribeOrderbook streams OrderbookSnapshot updates: one initial
// snapshot per requested market, then per-update or interval-coalesced
// snapshots driven by the broadcast ring.
func (s *Service) SubscribeOrderbook(req *pb.SubscribeRequest, stream pb.OrderbookService_SubscribeOrderbookServer) error {
	depth := s.clampDepth(req.Depth)

	books, err := s.resolveBooks(req.MarketIDs)
	if err != nil {
		return err
	}

	sessionID := ksuid.New().String()
	log := s.logger.With(zap.String("subscriber", sessionID))
	log.Info("subscriber connected",
		zap.Int("markets", len(books)),
		zap.Int("depth", depth),
		zap.Uint32("update_interval_ms", req.UpdateIntervalMs),
	)
	defer log.Info("subscriber terminated")

	ctx := stream.Context()

	// The cursor is opened before the initial snapshots so an update
	// published while they are being sent lands in the boundary overlap
	// rather than a silent gap: the consumer drops any streamed snapshot
	// whose sequence is not above what it already holds for that market.
	cursor := s.ring.Subscribe()

	// Initializing: one snapshot per requested market before streaming.
	for _, b := range books {
		if err := s.sendSnapshotRateLimited(ctx, stream, b, depth); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.SubscriberJoined()
		defer s.metrics.SubscriberLeft()
	}

	pump := newOutboundPump(s.cfg.OutboundCapacity)

	err = s.dispatch.Submit(func() {
		pump.run(ctx, cursor)
	})
	if err != nil {
		// Pool saturated: fall back to an unpooled goroutine rather than
		// refuse the subscription outright.
		go pump.run(ctx, cursor)
	}

	interval := time.Duration(req.UpdateIntervalMs) * time.Millisecond
	var tickCh <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickCh = ticker.C
	}
	pending := make(map[uint16]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case item, ok := <-pump.outbound:
			if !ok {
				return status.FromContextError(ctx.Err()).Err()
			}
			if pump.consecutiveDrops.Load() >= int64(s.cfg.MaxConsecutiveDrops) {
				// Persistent failure: the subscriber cannot keep up even
				// after repeated drop-oldest recovery attempts.
				return status.Errorf(codes.ResourceExhausted, "subscriber outbound channel persistently full after %d consecutive drops", pump.consecutiveDrops.Load())
			}
			if item.lagged {
				log.Warn("subscriber lagged, resynchronizing",
					zap.Uint64("missed", item.missed),
					zap.Uint64("resumed_at", item.position),
				)
				if s.metrics != nil {
					s.metrics.RecordBroadcastLag()
				}
				for _, b := range books {
					if err := s.sendSnapshotRateLimited(ctx, stream, b, depth); err != nil {
						return err
					}
				}
				continue
			}
			b, ok := books[item.update.MarketID]
			if !ok {
				continue
			}
			if interval <= 0 {
				if err := s.sendSnapshot(stream, b, depth); err != nil {
					return err
				}
			} else {
				pending[item.update.MarketID] = struct{}{}
			}

		case <-tickCh:
			for id := range pending {
				if b, ok := books[id]; ok {
					if err := s.sendSnapshot(stream, b, depth); err != nil {
						return err
					}
				}
			}
			pending = make(map[uint16]struct{})
		}
	}
}

func (s *Service) resolveBooks(marketIDs []uint32) (map[uint16]*orderbook.Book, error) {
	books := make(map[uint16]*orderbook.Book)
	if len(marketIDs) == 0 {
		for _, b := range s.books.All() {
			books[b.MarketID] = b
		}
		return books, nil
	}
	for _, id32 := range marketIDs {
		id := uint16(id32)
		b, ok := s.books.Book(id)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown market %d", id)
		}
		books[id] = b
	}
	return books, nil
}

func (s *Service) sendSnapshot(stream pb.OrderbookService_SubscribeOrderbookServer, b *orderbook.Book, depth int) error {
	if err := stream.Send(toPBSnapshot(b.Snapshot(depth))); err != nil {
		return status.Errorf(codes.Unavailable, "send failed: %v", err)
	}
	return nil
}

// sendSnapshotRateLimited throttles full-depth snapshot bursts (initial
// subscribe and post-lag resync) with a server-wide per-second limit: once
// SnapshotBurstRate is reached in the current period, each further snapshot
// is delayed by 5ms before it is sent. Snapshots are never refused, and
// streamed per-update snapshots do not pass through this limit.
func (s *Service) sendSnapshotRateLimited(ctx context.Context, stream pb.OrderbookService_SubscribeOrderbookServer, b *orderbook.Book, depth int) error {
	if lctx, err := s.snapshotLimiter.Get(ctx, "snapshot"); err == nil && lctx.Reached {
		time.Sleep(5 * time.Millisecond)
	}
	return s.sendSnapshot(stream, b, depth)
}

type outboundItem struct {
	lagged   bool
	missed   uint64
	position uint64 // cursor read position after this receive
	update   broadcast.MarketUpdate
}

// outboundPump drains a broadcast cursor into a bounded outbound channel,
// dropping the oldest pending item in favor of the newest once the channel
// is full. consecutiveDrops counts forced drops since the last item that
// was delivered without needing one; SubscribeOrderbook disconnects the
// subscriber with ResourceExhausted once this reaches
// Config.MaxConsecutiveDrops.
type outboundPump struct {
	outbound         chan outboundItem
	consecutiveDrops atomic.Int64
}

func newOutboundPump(capacity int) *outboundPump {
	return &outboundPump{outbound: make(chan outboundItem, capacity)}
}

func (p *outboundPump) run(ctx context.Context, cursor *broadcast.Cursor) {
	defer close(p.outbound)
	for {
		u, lagged, missed, err := cursor.Next(ctx)
		if err != nil {
			return
		}
		// Position is read here, on the goroutine that owns the cursor,
		// so the main loop can log it without racing cursor advancement.
		item := outboundItem{lagged: lagged, missed: missed, position: cursor.Position(), update: u}
		select {
		case p.outbound <- item:
			p.consecutiveDrops.Store(0)
		default:
			select {
			case <-p.outbound:
			default:
			}
			select {
			case p.outbound <- item:
				p.consecutiveDrops.Add(1)
			default:
			}
		}
	}
}
