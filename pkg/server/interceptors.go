package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Interceptors 持有注入的 logger，提供日志和 panic 恢复拦截器
type Interceptors struct {
	log *slog.Logger
}

func NewInterceptors(log *slog.Logger) *Interceptors {
	if log == nil {
		log = slog.Default()
	}
	return &Interceptors{log: log}
}

// ServerOptions 按 "恢复在外、日志在内" 的顺序串起拦截器
func (i *Interceptors) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(i.UnaryRecovery, i.UnaryLogging),
		grpc.ChainStreamInterceptor(i.StreamRecovery, i.StreamLogging),
	}
}

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLogging 负责拦截普通请求 (Exist / Remove)
func (i *Interceptors) UnaryLogging(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	i.logRPC(ctx, "unary", info.FullMethod, time.Since(start), err)
	return resp, err
}

// StreamLogging 负责拦截流式请求 (Upload / Download)，额外记录收发帧数
func (i *Interceptors) StreamLogging(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	cs := &countingStream{ServerStream: ss}
	err := handler(srv, cs)
	i.logRPC(ss.Context(), "stream", info.FullMethod, time.Since(start), err,
		slog.Int64("recv", cs.recv.Load()),
		slog.Int64("sent", cs.sent.Load()),
	)
	return err
}

// countingStream 统计帧数，其余行为透传
type countingStream struct {
	grpc.ServerStream
	recv atomic.Int64
	sent atomic.Int64
}

func (s *countingStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil {
		s.recv.Add(1)
	}
	return err
}

func (s *countingStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.sent.Add(1)
	}
	return err
}

func (i *Interceptors) logRPC(ctx context.Context, kind, method string, duration time.Duration, err error, extra ...slog.Attr) {
	code := status.Code(err)

	level := slog.LevelInfo
	switch code {
	case codes.OK:
	case codes.Internal, codes.Unknown, codes.DataLoss:
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("method", method),
		slog.String("code", code.String()),
		slog.Duration("dur", duration),
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, slog.String("peer", p.Addr.String()))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	i.log.LogAttrs(ctx, level, "gRPC request", append(attrs, extra...)...)
}

// =============================================================================
// 2. Recovery Interceptor
// =============================================================================

func (i *Interceptors) UnaryRecovery(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = i.recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

func (i *Interceptors) StreamRecovery(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = i.recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(srv, ss)
}

// recoverFromPanic 记录堆栈，给客户端返回 Internal 而不是直接断开连接
func (i *Interceptors) recoverFromPanic(method string, p any) error {
	i.log.Error("🔥 PANIC RECOVERED",
		slog.String("method", method),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	return status.Errorf(codes.Internal, "internal server error: panic recovered")
}
