// Command streamer runs the orderbook/stop-order streaming service: it
// ingests a line-delimited order feed, maintains per-market resting
// orderbooks and a stop-order table, and serves both over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/severussssss/hp-node-stream/internal/auth"
	"github.com/severussssss/hp-node-stream/internal/broadcast"
	"github.com/severussssss/hp-node-stream/internal/config"
	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/ingest/breaker"
	"github.com/severussssss/hp-node-stream/internal/ingest/parser"
	"github.com/severussssss/hp-node-stream/internal/metrics"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/rpcserver"
	"github.com/severussssss/hp-node-stream/internal/stopbook"
)

const (
	appName    = "hp-node-stream"
	appVersion = "v1.0.0"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration directory")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("streamer exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	universe := make([]registry.Entry, len(cfg.Markets))
	bookSeed := make(map[uint16]string, len(cfg.Markets))
	for i, m := range cfg.Markets {
		universe[i] = registry.Entry{MarketID: m.MarketID, Symbol: m.Symbol}
		bookSeed[m.MarketID] = m.Symbol
	}
	reg, err := registry.New(universe)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	promReg := prometheus.NewRegistry()
	met := metrics.New(promReg)

	books := orderbook.NewSet(bookSeed)
	stops := stopbook.New()
	weights := stopbook.RiskWeights{
		DistanceWeight: decimal.NewFromFloat(cfg.Risk.DistanceWeight),
		SlippageWeight: decimal.NewFromFloat(cfg.Risk.SlippageWeight),
	}
	ranker := stopbook.NewRiskRanker(stops, weights, time.Duration(cfg.Risk.MidPriceCacheMs)*time.Millisecond)

	p := parser.New(reg, parser.Limits{
		MaxPrice: decimal.NewFromFloat(cfg.Validator.MaxPrice),
		MaxSize:  decimal.NewFromFloat(cfg.Validator.MaxSize),
	})

	cb := breaker.New("ingest", breaker.Config{
		ErrorThreshold: cfg.CircuitBreaker.ErrorThreshold,
		ErrorWindow:    cfg.CircuitBreaker.ErrorWindow,
		CooldownPeriod: cfg.CircuitBreaker.CooldownPeriod,
		RingBufferSize: cfg.CircuitBreaker.RingBufferSize,
		LogSampleRate:  cfg.CircuitBreaker.LogSampleRate,
	}, logger)

	ring := broadcast.New(cfg.Broadcast.Capacity)

	driver := ingest.New(p, cb, books, stops, ring, logger, met)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, closeSource := openIngressSource(cfg.Ingest.Path)
	defer closeSource()

	dispatch, err := ants.NewPool(cfg.Dispatch.PoolSize)
	if err != nil {
		return fmt.Errorf("build dispatch pool: %w", err)
	}
	defer dispatch.Release()

	authenticator := auth.New(auth.Config{
		RequireAuth: cfg.Auth.RequireAuth,
		APIKeys:     cfg.Auth.APIKeys,
		JWTKey:      cfg.Auth.JWTKey,
	})

	svc := rpcserver.New(
		rpcserver.Config{
			DepthDefault:        uint32(cfg.Depth.Default),
			DepthMax:            uint32(cfg.Depth.Max),
			OutboundCapacity:    cfg.Broadcast.SubscriberSize,
			SnapshotBurstRate:   2000,
			MaxConsecutiveDrops: 5,
		},
		reg, books, stops, ranker, ring, nil, dispatch, logger, met,
	)

	transportOpts := rpcserver.DefaultTransportOptions()
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		creds, err := rpcserver.ServerTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return fmt.Errorf("build TLS credentials: %w", err)
		}
		transportOpts.Credentials = creds
	}

	transport := rpcserver.NewTransport(
		logger,
		transportOpts,
		svc,
		authenticator.UnaryServerInterceptor(),
		authenticator.StreamServerInterceptor(),
	)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := driver.Run(gctx, source)
		if errors.Is(err, io.EOF) {
			// Exhausted ingress (a finite file rather than a live feed) ends
			// the process the same way a shutdown signal does.
			logger.Info("ingress source exhausted")
			return context.Canceled
		}
		return err
	})

	g.Go(func() error {
		return transport.Serve(fmt.Sprintf(":%d", cfg.GRPC.Port))
	})

	g.Go(func() error {
		logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		transport.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("streamer stopped")
	return nil
}

func openIngressSource(path string) (*ingest.LineSource, func()) {
	if path == "" || path == "-" {
		src := ingest.NewLineSource(os.Stdin, 0)
		return src, src.Close
	}
	f, err := os.Open(path)
	if err != nil {
		src := ingest.NewLineSource(os.Stdin, 0)
		return src, src.Close
	}
	src := ingest.NewLineSource(f, 0)
	return src, func() {
		src.Close()
		f.Close()
	}
}
