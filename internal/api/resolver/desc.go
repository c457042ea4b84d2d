package resolver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "filestore.v1.Resolver"

// ResolverServer is the server API of filestore.v1.Resolver
type ResolverServer interface {
	GetData(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetSpecList(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetFileList(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	History(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	InsertResource(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	InsertDatum(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

func unary[Req proto.Message, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(ResolverServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ResolverServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ResolverServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct             { return new(structpb.Struct) }

// ResolverServiceDesc describes filestore.v1.Resolver over well-known protobuf types
var ResolverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetData", newStringValue, ResolverServer.GetData),
		unary("GetSpecList", newStringValue, ResolverServer.GetSpecList),
		unary("GetFileList", newStringValue, ResolverServer.GetFileList),
		unary("History", newStringValue, ResolverServer.History),
		unary("InsertResource", newStruct, ResolverServer.InsertResource),
		unary("InsertDatum", newStruct, ResolverServer.InsertDatum),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "filestore/v1/resolver.proto",
}

// RegisterResolverServer registers srv on s
func RegisterResolverServer(s grpc.ServiceRegistrar, srv ResolverServer) {
	s.RegisterService(&ResolverServiceDesc, srv)
}

// ResolverClient is the client API of filestore.v1.Resolver
type ResolverClient struct {
	cc grpc.ClientConnInterface
}

// NewResolverClient creates a client over cc
func NewResolverClient(cc grpc.ClientConnInterface) *ResolverClient {
	return &ResolverClient{cc: cc}
}

func invoke[Resp proto.Message](ctx context.Context, c *ResolverClient, name string, in proto.Message, out Resp, opts ...grpc.CallOption) (Resp, error) {
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...)
	return out, err
}

// GetData calls filestore.v1.Resolver/GetData
func (c *ResolverClient) GetData(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c, "GetData", in, new(structpb.Struct), opts...)
}

// GetSpecList calls filestore.v1.Resolver/GetSpecList
func (c *ResolverClient) GetSpecList(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c, "GetSpecList", in, new(structpb.ListValue), opts...)
}

// GetFileList calls filestore.v1.Resolver/GetFileList
func (c *ResolverClient) GetFileList(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c, "GetFileList", in, new(structpb.ListValue), opts...)
}

// History calls filestore.v1.Resolver/History
func (c *ResolverClient) History(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c, "History", in, new(structpb.ListValue), opts...)
}

// InsertResource calls filestore.v1.Resolver/InsertResource
func (c *ResolverClient) InsertResource(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke(ctx, c, "InsertResource", in, new(wrapperspb.StringValue), opts...)
}

// InsertDatum calls filestore.v1.Resolver/InsertDatum
func (c *ResolverClient) InsertDatum(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke(ctx, c, "InsertDatum", in, new(wrapperspb.StringValue), opts...)
}
