package gridstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gridstream/pkg/grid"
	"gridstream/pkg/meta"
	"gridstream/pkg/storage/memory"
	"gridstream/pkg/types"
)

// newTestStore: sqlite 内存库 + 内存块存储
func newTestStore(t *testing.T, opts ...Option) (*Store, *memory.Store) {
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

	chunks := memory.New()
	return New(meta.NewRepository(metaDB), chunks, opts...), chunks
}

// writeFile 直接通过句柄写入，绕开流
func writeFile(t *testing.T, s *Store, d grid.Descriptor, parts ...string) *types.FileInfo {
	t.Helper()
	ctx := context.Background()
	h, err := s.Open(ctx, d)
	require.NoError(t, err)
	for _, p := range parts {
		_, err := h.Write(ctx, []byte(p))
		require.NoError(t, err)
	}
	info, err := h.Close(ctx)
	require.NoError(t, err)
	return info
}

// readFile 从 pos 开始读完整个文件
func readFile(t *testing.T, s *Store, d grid.Descriptor, pos int64) string {
	t.Helper()
	ctx := context.Background()
	h, err := s.Open(ctx, d)
	require.NoError(t, err)
	defer h.Close(ctx)
	if pos > 0 {
		require.NoError(t, h.Seek(ctx, pos))
	}

	var sb strings.Builder
	r := h.Stream(ctx)
	for {
		chunk, err := r.Next(ctx)
		if err != nil {
			break
		}
		sb.Write(chunk)
	}
	return sb.String()
}

func writeDesc(id types.FileID, name string, mode types.Mode) grid.Descriptor {
	return grid.Descriptor{ID: id, Name: name, HasName: name != "", Mode: mode, Root: "fs"}
}

func readDesc(id types.FileID, name string) grid.Descriptor {
	return grid.Descriptor{ID: id, Name: name, HasName: name != "", Mode: types.ModeRead, Root: "fs"}
}
