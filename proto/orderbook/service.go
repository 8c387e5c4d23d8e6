package orderbook

import (
	"context"

	"google.golang.org/grpc"
)

// OrderbookServiceServer is the server API contract, hand-declared in place
// of protoc-codegen'd stubs (see codec.go). Shape mirrors exactly what
// protoc-gen-go-grpc would emit, so a later real codegen pass is a drop-in
// replacement.
type OrderbookServiceServer interface {
	SubscribeOrderbook(*SubscribeRequest, OrderbookService_SubscribeOrderbookServer) error
	GetOrderbook(context.Context, *GetOrderbookRequest) (*OrderbookSnapshot, error)
	SubscribeMarkPrices(*MarkPriceSubscribeRequest, OrderbookService_SubscribeMarkPricesServer) error
	GetMarkPrice(context.Context, *GetMarkPriceRequest) (*MarkPriceResponse, error)
	GetMarkets(context.Context, *Empty) (*MarketsResponse, error)
	GetStopOrders(context.Context, *StopOrdersRequest) (*StopOrdersResponse, error)
}

// UnimplementedOrderbookServiceServer must be embedded by server
// implementations for forward compatibility with added methods.
type UnimplementedOrderbookServiceServer struct{}

func (UnimplementedOrderbookServiceServer) SubscribeOrderbook(*SubscribeRequest, OrderbookService_SubscribeOrderbookServer) error {
	return grpcUnimplemented("SubscribeOrderbook")
}
func (UnimplementedOrderbookServiceServer) GetOrderbook(context.Context, *GetOrderbookRequest) (*OrderbookSnapshot, error) {
	return nil, grpcUnimplemented("GetOrderbook")
}
func (UnimplementedOrderbookServiceServer) SubscribeMarkPrices(*MarkPriceSubscribeRequest, OrderbookService_SubscribeMarkPricesServer) error {
	return grpcUnimplemented("SubscribeMarkPrices")
}
func (UnimplementedOrderbookServiceServer) GetMarkPrice(context.Context, *GetMarkPriceRequest) (*MarkPriceResponse, error) {
	return nil, grpcUnimplemented("GetMarkPrice")
}
func (UnimplementedOrderbookServiceServer) GetMarkets(context.Context, *Empty) (*MarketsResponse, error) {
	return nil, grpcUnimplemented("GetMarkets")
}
func (UnimplementedOrderbookServiceServer) GetStopOrders(context.Context, *StopOrdersRequest) (*StopOrdersResponse, error) {
	return nil, grpcUnimplemented("GetStopOrders")
}

// OrderbookService_SubscribeOrderbookServer is the server-side stream
// handle passed to SubscribeOrderbook implementations.
type OrderbookService_SubscribeOrderbookServer interface {
	Send(*OrderbookSnapshot) error
	grpc.ServerStream
}

type orderbookServiceSubscribeOrderbookServer struct {
	grpc.ServerStream
}

func (s *orderbookServiceSubscribeOrderbookServer) Send(m *OrderbookSnapshot) error {
	return s.ServerStream.SendMsg(m)
}

// OrderbookService_SubscribeMarkPricesServer is the server-side stream
// handle passed to SubscribeMarkPrices implementations.
type OrderbookService_SubscribeMarkPricesServer interface {
	Send(*MarkPriceUpdate) error
	grpc.ServerStream
}

type orderbookServiceSubscribeMarkPricesServer struct {
	grpc.ServerStream
}

func (s *orderbookServiceSubscribeMarkPricesServer) Send(m *MarkPriceUpdate) error {
	return s.ServerStream.SendMsg(m)
}

func _OrderbookService_SubscribeOrderbook_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(OrderbookServiceServer).SubscribeOrderbook(req, &orderbookServiceSubscribeOrderbookServer{stream})
}

func _OrderbookService_SubscribeMarkPrices_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(MarkPriceSubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(OrderbookServiceServer).SubscribeMarkPrices(req, &orderbookServiceSubscribeMarkPricesServer{stream})
}

func _OrderbookService_GetOrderbook_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetOrderbookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderbookServiceServer).GetOrderbook(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetOrderbook"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderbookServiceServer).GetOrderbook(ctx, req.(*GetOrderbookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderbookService_GetMarkPrice_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetMarkPriceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderbookServiceServer).GetMarkPrice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetMarkPrice"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderbookServiceServer).GetMarkPrice(ctx, req.(*GetMarkPriceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderbookService_GetMarkets_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderbookServiceServer).GetMarkets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetMarkets"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderbookServiceServer).GetMarkets(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderbookService_GetStopOrders_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StopOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderbookServiceServer).GetStopOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetStopOrders"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderbookServiceServer).GetStopOrders(ctx, req.(*StopOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceName is this service's fully qualified gRPC name.
const ServiceName = "orderbook.OrderbookService"

// ServiceDesc is the grpc.ServiceDesc for OrderbookService, hand-declared
// to mirror protoc-gen-go-grpc output exactly.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderbookServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrderbook", Handler: _OrderbookService_GetOrderbook_Handler},
		{MethodName: "GetMarkPrice", Handler: _OrderbookService_GetMarkPrice_Handler},
		{MethodName: "GetMarkets", Handler: _OrderbookService_GetMarkets_Handler},
		{MethodName: "GetStopOrders", Handler: _OrderbookService_GetStopOrders_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeOrderbook",
			Handler:       _OrderbookService_SubscribeOrderbook_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "SubscribeMarkPrices",
			Handler:       _OrderbookService_SubscribeMarkPrices_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "orderbook.proto",
}

// RegisterOrderbookServiceServer registers srv with s.
func RegisterOrderbookServiceServer(s grpc.ServiceRegistrar, srv OrderbookServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
