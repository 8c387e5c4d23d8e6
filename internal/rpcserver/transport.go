// Package rpcserver hosts the gRPC transport and the OrderbookService
// implementation. Transport setup covers keepalive, message size caps,
// reflection and stream worker pooling.
package rpcserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	pb "github.com/severussssss/hp-node-stream/proto/orderbook"
)

// TransportOptions controls the underlying grpc.Server.
type TransportOptions struct {
	MaxConnectionIdle     time.Duration
	MaxConnectionAge      time.Duration
	MaxConnectionAgeGrace time.Duration
	Time                  time.Duration
	Timeout               time.Duration
	MaxConcurrentStreams  uint32
	MaxRecvMsgSize        int
	MaxSendMsgSize        int
	NumServerWorkers      int

	// Credentials terminates TLS (and, when a client CA is configured,
	// verifies client certificates) on the listener. Nil serves plaintext.
	Credentials credentials.TransportCredentials
}

// ServerTLS builds transport credentials from PEM files. caFile may be
// empty for plain server-side TLS; when set, client certificates are
// required and verified against it (mTLS).
func ServerTLS(certFile, keyFile, caFile string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load server key pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("client CA %s contains no certificates", caFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return credentials.NewTLS(cfg), nil
}

// DefaultTransportOptions returns production-tuned server defaults.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxConnectionIdle:     15 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  5 * time.Second,
		Timeout:               1 * time.Second,
		MaxConcurrentStreams:  1000,
		MaxRecvMsgSize:        50 * 1024 * 1024,
		MaxSendMsgSize:        50 * 1024 * 1024,
		NumServerWorkers:      runtime.NumCPU(),
	}
}

// Transport wraps a grpc.Server with its listener.
type Transport struct {
	server   *grpc.Server
	listener net.Listener
	logger   *zap.Logger
	options  TransportOptions
}

// NewTransport builds a Transport with svc registered and auth
// interceptors (if any) wired in.
func NewTransport(logger *zap.Logger, options TransportOptions, svc pb.OrderbookServiceServer, unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) *Transport {
	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             options.Time,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     options.MaxConnectionIdle,
			MaxConnectionAge:      options.MaxConnectionAge,
			MaxConnectionAgeGrace: options.MaxConnectionAgeGrace,
			Time:                  options.Time,
			Timeout:               options.Timeout,
		}),
		grpc.MaxConcurrentStreams(options.MaxConcurrentStreams),
		grpc.MaxRecvMsgSize(options.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(options.MaxSendMsgSize),
		grpc.NumStreamWorkers(uint32(options.NumServerWorkers)),
		// proto/orderbook's message types are plain JSON-tagged structs, not
		// proto.Message implementations (see proto/orderbook/codec.go) --
		// without forcing this codec, the default "proto" codec would try
		// and fail to marshal every one of these six RPCs.
		grpc.ForceServerCodec(pb.Codec()),
	}
	if options.Credentials != nil {
		opts = append(opts, grpc.Creds(options.Credentials))
	}
	if unary != nil {
		opts = append(opts, grpc.UnaryInterceptor(unary))
	}
	if stream != nil {
		opts = append(opts, grpc.StreamInterceptor(stream))
	}

	server := grpc.NewServer(opts...)
	pb.RegisterOrderbookServiceServer(server, svc)
	reflection.Register(server)

	return &Transport{server: server, logger: logger, options: options}
}

// Serve listens on address and blocks serving until the server stops.
func (t *Transport) Serve(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	t.listener = listener

	t.logger.Info("starting gRPC server",
		zap.String("address", address),
		zap.Int("workers", t.options.NumServerWorkers),
	)
	return t.server.Serve(listener)
}

// Stop gracefully stops the server.
func (t *Transport) Stop() {
	t.logger.Info("stopping gRPC server")
	t.server.GracefulStop()
}

// Shutdown stops the server gracefully, forcing an immediate stop if ctx is
// done before the graceful stop completes.
func (t *Transport) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		t.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.server.Stop()
	}
}
