package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNotFound   = errors.New("chunk not found")
	ErrInvalidKey = errors.New("invalid chunk key")
)

// Store 是块数据的持久化后端。
// Key 由调用方组织 (形如 "fs/<file>/<n>")，Store 只负责按 Key 存取字节。
// 实现可以是本地磁盘、S3/MinIO 或者内存。
type Store interface {
	// Put 写入 (或覆盖) 一个块，必须是原子的：要么是旧内容，要么是新内容
	Put(ctx context.Context, key string, data []byte) error

	// Get 返回 io.ReadCloser，大块数据可以流式读取
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	Has(ctx context.Context, key string) (bool, error)

	// Delete 删除不存在的 Key 不算错误
	Delete(ctx context.Context, key string) error
}

// ReadAll 读出整个块
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ValidateKey 拒绝绝对路径和 ".." 段，防止磁盘实现逃出根目录
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
