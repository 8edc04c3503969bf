package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "serialpha.control.v1.AcquisitionControl"

// AcquisitionControlServer is the server API for the acquisition control service.
// Requests and replies are well-known protobuf types so no generated code is needed.
type AcquisitionControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SelectProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Connect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Disconnect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddPoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportNow(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

// unary builds the method descriptor for one request/reply call.
func unary[T any, P interface {
	*T
	proto.Message
}](method string, call func(AcquisitionControlServer, context.Context, P) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := P(new(T))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AcquisitionControlServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(P))
			})
		},
	}
}

// ServiceDesc describes AcquisitionControl for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AcquisitionControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", AcquisitionControlServer.GetStatus),
		unary("ListProfiles", AcquisitionControlServer.ListProfiles),
		unary("SelectProfile", AcquisitionControlServer.SelectProfile),
		unary("Connect", AcquisitionControlServer.Connect),
		unary("Disconnect", AcquisitionControlServer.Disconnect),
		unary("AddPoint", AcquisitionControlServer.AddPoint),
		unary("ExportNow", AcquisitionControlServer.ExportNow),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "serialpha/control.proto",
}

// RegisterAcquisitionControlServer registers srv on s.
func RegisterAcquisitionControlServer(s grpc.ServiceRegistrar, srv AcquisitionControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client calls AcquisitionControl over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStatus", &emptypb.Empty{})
}

func (c *Client) ListProfiles(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListProfiles", &emptypb.Empty{})
}

func (c *Client) SelectProfile(ctx context.Context, index int) (*structpb.Struct, error) {
	return c.invoke(ctx, "SelectProfile", &structpb.Struct{Fields: map[string]*structpb.Value{
		"index": structpb.NewNumberValue(float64(index)),
	}})
}

func (c *Client) Connect(ctx context.Context, port, value, unit string) (*structpb.Struct, error) {
	return c.invoke(ctx, "Connect", &structpb.Struct{Fields: map[string]*structpb.Value{
		"port":           structpb.NewStringValue(port),
		"interval_value": structpb.NewStringValue(value),
		"interval_unit":  structpb.NewStringValue(unit),
	}})
}

func (c *Client) Disconnect(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "Disconnect", &emptypb.Empty{})
}

func (c *Client) AddPoint(ctx context.Context, volume string) (*structpb.Struct, error) {
	return c.invoke(ctx, "AddPoint", &structpb.Struct{Fields: map[string]*structpb.Value{
		"volume": structpb.NewStringValue(volume),
	}})
}

func (c *Client) ExportNow(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "ExportNow", &emptypb.Empty{})
}
