package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupTestRepo 构建隔离的测试环境：每个测试一个共享缓存的内存库
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&FileRecord{}))
	return NewRepository(metaDB)
}

// mustSave 保存记录，失败直接终止
func mustSave(t *testing.T, repo *Repository, rec *FileRecord, msgAndArgs ...any) {
	t.Helper()
	err := repo.Save(context.Background(), rec)
	require.NoError(t, err, msgAndArgs...)
}

func newRecord(root, id, name string, uploaded time.Time) *FileRecord {
	return &FileRecord{
		Root:        root,
		FileID:      id,
		Filename:    name,
		ContentType: "binary/octet-stream",
		ChunkSize:   4,
		UploadDate:  uploaded,
	}
}
