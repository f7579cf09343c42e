// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gridstream/pkg/grid"
	"gridstream/pkg/gridstore"
	"gridstream/pkg/meta"
	"gridstream/pkg/meta/cache"
	"gridstream/pkg/storage"
	"gridstream/pkg/storage/disk"
	"gridstream/pkg/storage/memory"
	"gridstream/pkg/storage/minio"
	"gridstream/pkg/storage/s3"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	DB     *meta.DB
	Files  meta.Files
	Chunks storage.Store
	Store  *gridstore.Store
	Grid   *grid.Grid
	Log    *slog.Logger

	cache *cache.CachedFiles
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	log := newLogger(viper.GetString("log.level"), viper.GetString("log.format"))

	// 1. 元数据层
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("database.driver"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		Path:     viper.GetString("database.path"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init meta db: %w", err)
	}

	a := &App{DB: db, Log: log}
	var files meta.Files = meta.NewRepository(db)

	// 2. 可选的 Redis 读缓存
	if url := viper.GetString("cache.redis_url"); url != "" {
		c, err := cache.NewCachedFiles(files, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
		files = c
		a.cache = c
	}
	a.Files = files

	// 3. 块存储
	chunks, err := initStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Chunks = chunks

	// 4. 后端 + 流工厂
	opts := []gridstore.Option{gridstore.WithLogger(log)}
	if n := viper.GetInt("grid.chunk_size"); n > 0 {
		opts = append(opts, gridstore.WithChunkSize(n))
	}
	if r := viper.GetFloat64("grid.rate_limit"); r > 0 {
		opts = append(opts, gridstore.WithRateLimit(r))
	}
	a.Store = gridstore.New(files, chunks, opts...)

	a.Grid, err = grid.New(a.Store, grid.WithLogger(log), grid.WithRoot(viper.GetString("grid.root")))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// initStore 根据 storage.type 选择块存储实现
func initStore(ctx context.Context) (storage.Store, error) {
	switch t := viper.GetString("storage.type"); t {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		store, err := disk.NewAdapter(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	case "s3":
		store, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			Bucket:          viper.GetString("storage.bucket"),
			AccessKeyID:     viper.GetString("storage.access_key"),
			SecretAccessKey: viper.GetString("storage.secret_key"),
			Prefix:          viper.GetString("storage.prefix"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		store, err := minio.New(ctx, minio.Config{
			Endpoint:        viper.GetString("storage.endpoint"),
			Bucket:          viper.GetString("storage.bucket"),
			AccessKeyID:     viper.GetString("storage.access_key"),
			SecretAccessKey: viper.GetString("storage.secret_key"),
			UseSSL:          viper.GetBool("storage.use_ssl"),
			Prefix:          viper.GetString("storage.prefix"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Close 释放缓存连接和数据库连接
func (a *App) Close() error {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
