package server

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestInterceptors() (*Interceptors, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewInterceptors(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestUnaryRecovery(t *testing.T) {
	i, buf := newTestInterceptors()
	info := &grpc.UnaryServerInfo{FullMethod: "/gridstream.v1.FileService/Exist"}

	_, err := i.UnaryRecovery(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, buf.String(), "PANIC RECOVERED")
}

func TestUnaryLogging_LevelByCode(t *testing.T) {
	i, buf := newTestInterceptors()
	info := &grpc.UnaryServerInfo{FullMethod: "/gridstream.v1.FileService/Remove"}

	_, err := i.UnaryLogging(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "code=NotFound")

	buf.Reset()
	_, err = i.UnaryLogging(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=INFO")
}

type fakeServerStream struct {
	grpc.ServerStream
	frames int
}

func (s *fakeServerStream) Context() context.Context { return context.Background() }

func (s *fakeServerStream) RecvMsg(m any) error {
	if s.frames == 0 {
		return context.Canceled
	}
	s.frames--
	return nil
}

func (s *fakeServerStream) SendMsg(m any) error { return nil }

func TestStreamLogging_CountsFrames(t *testing.T) {
	i, buf := newTestInterceptors()
	info := &grpc.StreamServerInfo{FullMethod: "/gridstream.v1.FileService/Upload", IsClientStream: true}

	err := i.StreamLogging(nil, &fakeServerStream{frames: 3}, info, func(srv any, ss grpc.ServerStream) error {
		for ss.RecvMsg(nil) == nil {
		}
		return ss.SendMsg(nil)
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "recv=3")
	assert.Contains(t, buf.String(), "sent=1")
}

func TestStreamRecovery(t *testing.T) {
	i, _ := newTestInterceptors()
	info := &grpc.StreamServerInfo{FullMethod: "/gridstream.v1.FileService/Download"}
	err := i.StreamRecovery(nil, &fakeServerStream{}, info, func(srv any, ss grpc.ServerStream) error {
		panic("stream boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
