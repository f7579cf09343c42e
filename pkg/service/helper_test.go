package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
	"gridstream/pkg/app"
	"gridstream/pkg/grid"
	"gridstream/pkg/gridstore"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage/memory"
)

// setupTestApp 是所有 Service 测试共享的基础设施初始化逻辑
func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.FileRecord{}))

	log := slog.New(slog.DiscardHandler)
	files := meta.NewRepository(metaDB)
	chunks := memory.New()
	store := gridstore.New(files, chunks, gridstore.WithChunkSize(4), gridstore.WithLogger(log))
	g, err := grid.New(store, grid.WithLogger(log))
	require.NoError(t, err)

	return &app.App{DB: metaDB, Files: files, Chunks: chunks, Store: store, Grid: g, Log: log}
}

// startServer 在 bufconn 上启动 FileService 并返回客户端
func startServer(t *testing.T, a *app.App) gsrpc.FileServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	gsrpc.RegisterFileServiceServer(srv, NewFileService(a))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return gsrpc.NewFileServiceClient(conn)
}
