package service

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
)

// =============================================================================
// 1. Upload Adapter: gRPC Stream -> io.Reader
// =============================================================================

// UploadStream 定义了 Upload 接口所需的最小集合，方便测试 Mock
type UploadStream interface {
	Recv() (*anypb.Any, error)
}

// GrpcStreamReader 将 Upload 流的数据帧包装为 io.Reader，供写流的 ReadFrom 消费
type GrpcStreamReader struct {
	stream UploadStream
	buf    []byte // 从 Recv 拿到、还没被 Read 读走的数据
	err    error  // 流的终止状态 (io.EOF 或协议错误)
}

func NewGrpcStreamReader(stream UploadStream) *GrpcStreamReader {
	return &GrpcStreamReader{stream: stream}
}

// Read 实现了 io.Reader 接口
func (r *GrpcStreamReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		a, err := r.stream.Recv()
		if err != nil {
			r.err = err // 可能是 io.EOF
			return 0, err
		}
		frame, err := gsrpc.UnpackFrame(a)
		if err != nil {
			r.err = status.Error(codes.InvalidArgument, err.Error())
			return 0, r.err
		}
		if frame.Options != nil {
			// 选项只能出现在第一帧
			r.err = status.Error(codes.InvalidArgument, "protocol violation: options frame after data")
			return 0, r.err
		}
		// 空帧直接跳过
		r.buf = frame.Data.GetValue()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// =============================================================================
// 2. Download Adapter: io.Writer -> gRPC Stream
// =============================================================================

// DownloadStream 定义了 Download 接口所需的最小集合
type DownloadStream interface {
	Send(*wrapperspb.BytesValue) error
}

// GrpcStreamWriter 将 Download 流包装为 io.Writer，读流每投递一块就发一帧
type GrpcStreamWriter struct {
	stream DownloadStream
}

func NewGrpcStreamWriter(stream DownloadStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

// Write 实现了 io.Writer 接口。Send 返回前会序列化 p，不需要拷贝。
func (w *GrpcStreamWriter) Write(p []byte) (int, error) {
	if err := w.stream.Send(wrapperspb.Bytes(p)); err != nil {
		return 0, fmt.Errorf("grpc send failed: %w", err)
	}
	return len(p), nil
}
