package relayapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// GRPCServer 实现 relay.v1.Relay。
type GRPCServer struct {
	backend Backend
}

// NewGRPCServer 构造 gRPC server。
func NewGRPCServer(backend Backend) *GRPCServer {
	if backend == nil {
		panic("relay backend is required")
	}
	return &GRPCServer{backend: backend}
}

// Fetch 实现 RelayServer。
func (s *GRPCServer) Fetch(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	if id == nil {
		return nil, status.Error(codes.InvalidArgument, "topic id is required")
	}
	msg, ok, err := s.backend.Fetch(ctx, id.GetValue())
	if err != nil {
		return nil, s.grpcError(err)
	}
	if !ok {
		return &structpb.Struct{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(msg, &fields); err != nil {
		return nil, status.Error(codes.Internal, "stored message is not an object")
	}
	out, err := structpb.NewStruct(map[string]any{"message": fields})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Deliver 实现 RelayServer。
func (s *GRPCServer) Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id := req.GetFields()["id"].GetStringValue()
	message := req.GetFields()["message"].GetStructValue()
	if message == nil {
		return nil, status.Error(codes.InvalidArgument, "message object is required")
	}
	raw, err := message.MarshalJSON()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.backend.Deliver(ctx, id, raw); err != nil {
		return nil, s.grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

// Clear 实现 RelayServer。
func (s *GRPCServer) Clear(ctx context.Context, id *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if id == nil {
		return nil, status.Error(codes.InvalidArgument, "topic id is required")
	}
	if err := s.backend.Clear(ctx, id.GetValue()); err != nil {
		return nil, s.grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) grpcError(err error) error {
	if apiErr, ok := apierrors.FromError(err); ok {
		return status.Error(apierrors.GRPCStatus(apiErr.Code), apiErr.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

// GRPCClient 是 relay.v1.Relay 的客户端。
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient 基于已有连接构造客户端。
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Fetch 返回邮箱消息的 JSON。
func (c *GRPCClient) Fetch(ctx context.Context, id string) (json.RawMessage, bool, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+RelayServiceName+"/Fetch", wrapperspb.String(id), out); err != nil {
		return nil, false, err
	}
	message, ok := out.GetFields()["message"]
	if !ok {
		return nil, false, nil
	}
	raw, err := message.MarshalJSON()
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Deliver 写入邮箱；msg 必须是 JSON 对象。
func (c *GRPCClient) Deliver(ctx context.Context, id string, msg json.RawMessage) error {
	var fields map[string]any
	if err := json.Unmarshal(msg, &fields); err != nil {
		return apierrors.New(apierrors.CodeInvalidArgument, "message must be a JSON object")
	}
	req, err := structpb.NewStruct(map[string]any{"id": id, "message": fields})
	if err != nil {
		return apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	return c.cc.Invoke(ctx, "/"+RelayServiceName+"/Deliver", req, new(emptypb.Empty))
}

// Clear 删除邮箱。
func (c *GRPCClient) Clear(ctx context.Context, id string) error {
	return c.cc.Invoke(ctx, "/"+RelayServiceName+"/Clear", wrapperspb.String(id), new(emptypb.Empty))
}
