package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 → ./.gs → ~/.gs
		viper.AddConfigPath(".")
		viper.AddConfigPath(".gs")
		viper.AddConfigPath(filepath.Join(home, ".gs"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 环境变量 (GS_DATABASE_HOST、GS_GRID_CHUNK_SIZE 等)
	viper.SetEnvPrefix("GS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件；找不到文件不算错，格式错误才算
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		fmt.Fprintln(os.Stderr, "⚠️  No config file found, using defaults/env vars")
	} else {
		fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// 数据库：默认本地 sqlite，免去起 postgres
	wd, _ := os.Getwd()
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", filepath.Join(wd, ".gs", "meta.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 块存储
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, ".gs", "chunks"))
	viper.SetDefault("storage.region", "us-east-1")

	// 缓存 (redis_url 为空表示关闭)
	viper.SetDefault("cache.ttl", "24h")

	// grid
	viper.SetDefault("grid.root", "fs")
	viper.SetDefault("grid.chunk_size", 255*1024)
	viper.SetDefault("grid.rate_limit", 0)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("remote.addr", "localhost:8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
