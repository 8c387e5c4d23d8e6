package orderbook

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// jsonCodecName is registered as a custom content-subtype so gRPC frames
// this service's messages as application/grpc+json instead of the default
// application/grpc+proto. This is a deliberate substitute for a
// protoc-compiled wire codec: it keeps every other part of
// google.golang.org/grpc (keepalive, streaming, interceptors, reflection)
// as the real, unmodified transport, while message encoding is JSON rather
// than protobuf binary.
const jsonCodecName = "json"

type jsonCodec struct{}

// Marshal encodes this package's plain structs as JSON. Values that are
// real proto.Message implementations still go through the protobuf codec:
// grpc.ForceServerCodec applies to every service on the server, including
// reflection, whose messages must stay binary-proto on the wire.
func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpc+json unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Codec returns the application/grpc+json codec this package registers
// under encoding.RegisterCodec, so callers can additionally force it as a
// grpc.Server's/grpc.ClientConn's default codec via grpc.ForceServerCodec /
// grpc.ForceCodec -- registration alone only makes it available for the
// "json" content-subtype, it does not make it the codec a plain
// grpc.Dial/grpc.NewServer client uses for these messages (which carry no
// proto.Message implementation and would otherwise hit the default "proto"
// codec).
func Codec() encoding.Codec {
	return jsonCodec{}
}
