// Package gsrpcv1 是 gridstream.v1.FileService 的服务描述和客户端/服务端桩。
//
// 消息全部使用 protobuf well-known types：选项和文件信息用 structpb.Struct，
// 数据帧用 wrapperspb.BytesValue，Upload 的请求帧用 anypb.Any 区分两者。
package gsrpcv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gridstream.v1.FileService"

const (
	FileService_Upload_FullMethodName   = "/gridstream.v1.FileService/Upload"
	FileService_Download_FullMethodName = "/gridstream.v1.FileService/Download"
	FileService_Exist_FullMethodName    = "/gridstream.v1.FileService/Exist"
	FileService_Remove_FullMethodName   = "/gridstream.v1.FileService/Remove"
)

// FileServiceClient is the client API for FileService.
type FileServiceClient interface {
	// Upload: 第一帧是选项 (Struct)，之后是数据帧 (BytesValue)；返回文件信息
	Upload(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[anypb.Any, structpb.Struct], error)
	// Download: 请求是选项 (_id|filename, range)，响应是数据帧
	Download(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
	Exist(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Remove(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type fileServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFileServiceClient(cc grpc.ClientConnInterface) FileServiceClient {
	return &fileServiceClient{cc}
}

func (c *fileServiceClient) Upload(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[anypb.Any, structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &FileService_ServiceDesc.Streams[0], FileService_Upload_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[anypb.Any, structpb.Struct]{ClientStream: stream}, nil
}

func (c *fileServiceClient) Download(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &FileService_ServiceDesc.Streams[1], FileService_Download_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *fileServiceClient) Exist(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, FileService_Exist_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) Remove(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, FileService_Remove_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FileServiceServer is the server API for FileService.
// 实现方必须内嵌 UnimplementedFileServiceServer。
type FileServiceServer interface {
	Upload(grpc.ClientStreamingServer[anypb.Any, structpb.Struct]) error
	Download(*structpb.Struct, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	Exist(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	Remove(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	mustEmbedUnimplementedFileServiceServer()
}

// UnimplementedFileServiceServer 按值内嵌，所有方法返回 Unimplemented
type UnimplementedFileServiceServer struct{}

func (UnimplementedFileServiceServer) Upload(grpc.ClientStreamingServer[anypb.Any, structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method Upload not implemented")
}
func (UnimplementedFileServiceServer) Download(*structpb.Struct, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	return status.Error(codes.Unimplemented, "method Download not implemented")
}
func (UnimplementedFileServiceServer) Exist(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Exist not implemented")
}
func (UnimplementedFileServiceServer) Remove(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Remove not implemented")
}
func (UnimplementedFileServiceServer) mustEmbedUnimplementedFileServiceServer() {}

func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileService_ServiceDesc, srv)
}

func _FileService_Upload_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(FileServiceServer).Upload(&grpc.GenericServerStream[anypb.Any, structpb.Struct]{ServerStream: stream})
}

func _FileService_Download_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FileServiceServer).Download(m, &grpc.GenericServerStream[structpb.Struct, wrapperspb.BytesValue]{ServerStream: stream})
}

func _FileService_Exist_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).Exist(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FileService_Exist_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).Exist(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _FileService_Remove_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).Remove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FileService_Remove_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).Remove(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FileService_ServiceDesc 是手写的服务描述，Streams 的下标被客户端桩引用
var FileService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Exist", Handler: _FileService_Exist_Handler},
		{MethodName: "Remove", Handler: _FileService_Remove_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Upload", Handler: _FileService_Upload_Handler, ClientStreams: true},
		{StreamName: "Download", Handler: _FileService_Download_Handler, ServerStreams: true},
	},
	Metadata: "gridstream/v1/file_service.proto",
}
