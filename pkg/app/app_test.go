package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"gridstream/pkg/grid"
	"gridstream/pkg/storage/disk"
	"gridstream/pkg/storage/memory"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStore_Disk(t *testing.T) {
	// 1. Mock 配置
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("storage.type", "disk")
	viper.Set("storage.path", filepath.Join(t.TempDir(), "chunks"))

	// 2. 调用私有函数
	store, err := initStore(context.Background())

	// 3. 验证
	require.NoError(t, err)
	assert.IsType(t, &disk.Adapter{}, store)
}

func TestInitStore_Memory(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("storage.type", "memory")

	store, err := initStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
}

func TestInitStore_MissingBucket(t *testing.T) {
	for _, typ := range []string{"s3", "minio"} {
		t.Run(typ, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set("storage.type", typ)
			// 故意不设置 bucket

			store, err := initStore(context.Background())
			assert.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), "bucket is required")
		})
	}
}

func TestInitStore_UnknownType(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("storage.type", "ftp") // 不支持的类型

	store, err := initStore(context.Background())
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestNewApp_SqliteAndMemory(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("database.driver", "sqlite")
	viper.Set("database.path", filepath.Join(t.TempDir(), "meta.db"))
	viper.Set("storage.type", "memory")
	viper.Set("grid.root", "models")
	viper.Set("grid.chunk_size", 8)

	ctx := context.Background()
	a, err := NewApp(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, "models", a.Grid.Root())

	w := a.Grid.CreateWriteStream(ctx, grid.Filename("hello.txt"))
	_, err = w.ReadFrom(strings.NewReader("hello from the app container"))
	require.NoError(t, err)
	assert.Equal(t, 8, w.File().ChunkSize)

	ok, err := a.Grid.Exist(ctx, grid.Filename("hello.txt"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLogger_Levels(t *testing.T) {
	l := newLogger("debug", "json")
	assert.True(t, l.Enabled(context.Background(), -4))
	l = newLogger("bogus", "")
	assert.False(t, l.Enabled(context.Background(), -4))
}
