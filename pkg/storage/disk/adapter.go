package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gridstream/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /home/user/.gs/chunks
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回 Key 对应的物理路径
// Example: "fs/<file>/000003" -> root/fs/<file>/000003
func (s *Adapter) layout(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(key)), nil
}

func (s *Adapter) Put(ctx context.Context, key string, data []byte) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入：先写临时文件再 Rename
	// 尾块会被反复重写，读者要么看到旧块，要么看到新块
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// 3. 移动到最终位置 (覆盖旧块)
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, key string) (bool, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) Delete(ctx context.Context, key string) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return err
	}
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	// 文件目录空了就顺手删掉，非空时 Remove 会失败，忽略即可
	_ = os.Remove(filepath.Dir(targetPath))
	return nil
}
