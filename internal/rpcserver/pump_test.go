package rpcserver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/severussssss/hp-node-stream/internal/broadcast"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
	pb "github.com/severussssss/hp-node-stream/proto/orderbook"
)

// TestOutboundPump_DropsOldestWhenFull proves the drop-oldest policy: once
// the outbound channel fills, the pump evicts the pending item and counts a
// forced drop rather than blocking the cursor.
func TestOutboundPump_DropsOldestWhenFull(t *testing.T) {
	ring := broadcast.New(100)
	cursor := ring.Subscribe()
	pump := newOutboundPump(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.run(ctx, cursor)

	for i := 0; i < 10; i++ {
		ring.Publish(broadcast.MarketUpdate{MarketID: 0, Sequence: uint64(i + 1)})
	}

	require.Eventually(t, func() bool {
		return pump.consecutiveDrops.Load() > 0
	}, time.Second, time.Millisecond)
}

// TestOutboundPump_ResetsConsecutiveDropsOnDrain proves a subscriber that
// catches back up is not penalized for past drops: consecutiveDrops resets
// to zero once an item is delivered without needing to force a drop.
func TestOutboundPump_ResetsConsecutiveDropsOnDrain(t *testing.T) {
	ring := broadcast.New(100)
	cursor := ring.Subscribe()
	pump := newOutboundPump(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.run(ctx, cursor)

	for i := 0; i < 5; i++ {
		ring.Publish(broadcast.MarketUpdate{MarketID: 0, Sequence: uint64(i + 1)})
	}
	require.Eventually(t, func() bool {
		return pump.consecutiveDrops.Load() > 0
	}, time.Second, time.Millisecond)

	// Drain the single pending item, freeing a slot the next publish can
	// land in directly without forcing a drop.
	<-pump.outbound
	ring.Publish(broadcast.MarketUpdate{MarketID: 0, Sequence: 99})

	require.Eventually(t, func() bool {
		return pump.consecutiveDrops.Load() == 0
	}, time.Second, time.Millisecond)
}

// countingStream counts Send calls, stalling only the first one.
type countingStream struct {
	ctx        context.Context
	firstDelay time.Duration
	sends      atomic.Int32
}

func (s *countingStream) Send(*pb.OrderbookSnapshot) error {
	if s.sends.Add(1) == 1 {
		time.Sleep(s.firstDelay)
	}
	return nil
}
func (s *countingStream) SetHeader(metadata.MD) error  { return nil }
func (s *countingStream) SendHeader(metadata.MD) error { return nil }
func (s *countingStream) SetTrailer(metadata.MD)       {}
func (s *countingStream) Context() context.Context     { return s.ctx }
func (s *countingStream) SendMsg(interface{}) error    { return nil }
func (s *countingStream) RecvMsg(interface{}) error    { return nil }

// TestService_SubscribeOrderbook_DeliversUpdatePublishedDuringInitialSnapshot
// pins the subscribe-then-snapshot ordering: the broadcast cursor is opened
// before the initial snapshots go out, so an update landing while they are
// being sent is still delivered afterwards instead of falling into a gap
// the subscriber can never detect.
func TestService_SubscribeOrderbook_DeliversUpdatePublishedDuringInitialSnapshot(t *testing.T) {
	reg, err := registry.New([]registry.Entry{{MarketID: 0, Symbol: "BTC"}})
	require.NoError(t, err)
	books := orderbook.NewSet(map[uint16]string{0: "BTC"})
	stops := stopbook.New()
	ranker := stopbook.NewRiskRanker(stops, stopbook.DefaultRiskWeights(), 0)
	ring := broadcast.New(100)
	dispatch, err := ants.NewPool(4)
	require.NoError(t, err)
	defer dispatch.Release()

	svc := New(Config{}, reg, books, stops, ranker, ring, nil, dispatch, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := &countingStream{ctx: ctx, firstDelay: 200 * time.Millisecond}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.SubscribeOrderbook(&pb.SubscribeRequest{MarketIDs: []uint32{0}}, stream)
	}()

	// Land a publish inside the stalled initial-snapshot send.
	time.Sleep(50 * time.Millisecond)
	ring.Publish(broadcast.MarketUpdate{MarketID: 0})

	require.Eventually(t, func() bool {
		return stream.sends.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "update published during initial snapshot was never delivered")

	cancel()
	<-errCh
}

// stallingStream is a fake OrderbookService_SubscribeOrderbookServer whose
// first Send blocks long enough for several ring publishes to pile up
// behind a single-slot outbound channel, forcing the pump to drop
// repeatedly before the main loop comes back around to check the
// subscriber's drop streak.
type stallingStream struct {
	ctx        context.Context
	firstDelay time.Duration
}

func (s *stallingStream) Send(*pb.OrderbookSnapshot) error {
	time.Sleep(s.firstDelay)
	return nil
}
func (s *stallingStream) SetHeader(metadata.MD) error  { return nil }
func (s *stallingStream) SendHeader(metadata.MD) error { return nil }
func (s *stallingStream) SetTrailer(metadata.MD)       {}
func (s *stallingStream) Context() context.Context     { return s.ctx }
func (s *stallingStream) SendMsg(interface{}) error    { return nil }
func (s *stallingStream) RecvMsg(interface{}) error    { return nil }

// TestService_SubscribeOrderbook_DisconnectsOnPersistentDrops proves the
// other half of the back-pressure policy: a subscriber whose outbound
// channel stays full across MaxConsecutiveDrops deliveries is disconnected
// with ResourceExhausted rather than drained forever.
func TestService_SubscribeOrderbook_DisconnectsOnPersistentDrops(t *testing.T) {
	reg, err := registry.New([]registry.Entry{{MarketID: 0, Symbol: "BTC"}})
	require.NoError(t, err)
	books := orderbook.NewSet(map[uint16]string{0: "BTC"})
	stops := stopbook.New()
	ranker := stopbook.NewRiskRanker(stops, stopbook.DefaultRiskWeights(), 0)
	ring := broadcast.New(100)
	dispatch, err := ants.NewPool(4)
	require.NoError(t, err)
	defer dispatch.Release()

	svc := New(Config{OutboundCapacity: 1, MaxConsecutiveDrops: 3}, reg, books, stops, ranker, ring, nil, dispatch, zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := &stallingStream{ctx: ctx, firstDelay: 300 * time.Millisecond}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.SubscribeOrderbook(&pb.SubscribeRequest{MarketIDs: []uint32{0}}, stream)
	}()

	// Every Send call (including the initial snapshot) stalls for
	// firstDelay, so keep publishing well past that window; the cursor is
	// already open, and the updates pile up behind the single-slot
	// outbound channel while the stream is stalled.
	for i := 0; i < 100; i++ {
		svc.ring.Publish(broadcast.MarketUpdate{MarketID: 0, Sequence: uint64(i + 1)})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case err := <-errCh:
		require.Error(t, err)
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.ResourceExhausted, st.Code())
	case <-time.After(4 * time.Second):
		t.Fatal("SubscribeOrderbook did not disconnect a persistently stalled subscriber")
	}
}
