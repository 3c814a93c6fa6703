package relayapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RelayServiceName 是 gRPC 服务全名。
const RelayServiceName = "relay.v1.Relay"

// RelayServer 是 relay.v1.Relay 的服务端接口，消息全部使用 well-known 类型。
type RelayServer interface {
	// Fetch 返回 {"message": {...}}，无消息时返回空 Struct。
	Fetch(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	// Deliver 接收 {"id": "...", "message": {...}}。
	Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Clear(ctx context.Context, id *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// RegisterRelayServer 注册服务实现。
func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&relayServiceDesc, srv)
}

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: RelayServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
		{MethodName: "Deliver", Handler: deliverHandler},
		{MethodName: "Clear", Handler: clearHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "relay/v1/relay.proto",
}

func fetchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + RelayServiceName + "/Fetch"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Fetch(ctx, req.(*wrapperspb.StringValue))
	})
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + RelayServiceName + "/Deliver"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Deliver(ctx, req.(*structpb.Struct))
	})
}

func clearHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Clear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + RelayServiceName + "/Clear"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Clear(ctx, req.(*wrapperspb.StringValue))
	})
}
