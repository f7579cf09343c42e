package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
	"gridstream/pkg/app"
	"gridstream/pkg/grid"
	"gridstream/pkg/gridstore"
)

type FileService struct {
	gsrpc.UnimplementedFileServiceServer
	app *app.App
	log *slog.Logger
}

func NewFileService(application *app.App) *FileService {
	log := application.Log
	if log == nil {
		log = slog.Default()
	}
	return &FileService{app: application, log: log.With("svc", "file")}
}

// =============================================================================
// 1. Upload (Client-Side Streaming)
// =============================================================================

// Upload 协议约定：第一帧必须是选项 (Struct)，后续帧是数据 (BytesValue)
func (s *FileService) Upload(stream grpc.ClientStreamingServer[anypb.Any, structpb.Struct]) error {
	// --- Step 1: 握手 ---
	first, err := stream.Recv()
	if err == io.EOF {
		return status.Error(codes.InvalidArgument, "empty stream: expected options frame")
	}
	if err != nil {
		return status.Errorf(codes.Internal, "failed to receive options: %v", err)
	}
	frame, err := gsrpc.UnpackFrame(first)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if frame.Options == nil {
		return status.Error(codes.InvalidArgument, "protocol violation: first frame must be options")
	}
	opts, err := grid.OptionsFromMap(frame.Options.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	// --- Step 2: gRPC 流 → 写流 ---
	ctx := stream.Context()
	w := s.app.Grid.CreateWriteStream(ctx, opts)
	s.log.Info("upload started", "file", w.Descriptor().Identity(), "root", w.Descriptor().Root)

	if _, err := w.ReadFrom(NewGrpcStreamReader(stream)); err != nil {
		return toStatus(err)
	}

	// --- Step 3: 响应 ---
	info := w.File()
	if info == nil {
		return status.Error(codes.Internal, "upload closed without file info")
	}
	reply, err := gsrpc.InfoToStruct(info)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	s.log.Info("upload finished", "file", info.ID.String(), "length", info.Length)
	return stream.SendAndClose(reply)
}

// =============================================================================
// 2. Download (Server-Side Streaming)
// =============================================================================

// Download 请求：{_id | filename, range, encoding}
func (s *FileService) Download(req *structpb.Struct, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	fields := req.AsMap()
	opts, err := grid.OptionsFromMap(fields)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	rs := s.app.Grid.CreateReadStream(stream.Context(), opts)
	if enc, ok := fields["encoding"].(string); ok && enc != "" {
		if err := rs.SetEncoding(enc); err != nil {
			rs.Destroy()
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	n, err := rs.WriteTo(NewGrpcStreamWriter(stream))
	if err != nil {
		return toStatus(err)
	}
	s.log.Debug("download finished", "file", rs.ID().String(), "name", rs.Name(), "bytes", n)
	return nil
}

// =============================================================================
// 3. Unary
// =============================================================================

func (s *FileService) Exist(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	opts, err := grid.OptionsFromMap(req.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ok, err := s.app.Grid.Exist(ctx, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *FileService) Remove(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	opts, err := grid.OptionsFromMap(req.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.app.Grid.Remove(ctx, opts); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus 把核心层错误映射到 gRPC 状态码；已经是 status 的错误原样返回
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, grid.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, grid.ErrMissingIdentity),
		errors.Is(err, grid.ErrInvalidRange),
		errors.Is(err, grid.ErrUnknownEncoding),
		errors.Is(err, gridstore.ErrInvalidRoot),
		errors.Is(err, gridstore.ErrWrongMode):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, gridstore.ErrSeekOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, gridstore.ErrMissingChunk):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
