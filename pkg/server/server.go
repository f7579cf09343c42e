package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
	"gridstream/pkg/app"
	"gridstream/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// New 组装 gRPC 服务端：拦截器 + FileService + reflection (方便 grpcurl 调试)
func New(a *app.App, opts ...grpc.ServerOption) *grpc.Server {
	all := append(NewInterceptors(a.Log).ServerOptions(), opts...)
	srv := grpc.NewServer(all...)
	gsrpc.RegisterFileServiceServer(srv, service.NewFileService(a))
	reflection.Register(srv)
	return srv
}

// Run 监听 addr 并服务，ctx 结束时优雅停机
func Run(ctx context.Context, addr string, a *app.App) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, a)
}

func Serve(ctx context.Context, lis net.Listener, a *app.App) error {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	srv := New(a)
	errCh := make(chan error, 1)
	go func() {
		log.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down server")
		srv.GracefulStop()
		return nil
	}
}
