package grid

import (
	"context"

	"gridstream/pkg/types"
)

// Backend 是分块存储的协作方。
// 所有调用都可能阻塞，适配器会在各自的 goroutine 里调用它们。
type Backend interface {
	Open(ctx context.Context, d Descriptor) (Handle, error)
	Exists(ctx context.Context, d Descriptor) (bool, error)
	Remove(ctx context.Context, d Descriptor) error
}

// Handle 是一个已打开的存储句柄，由且仅由一个适配器独占
type Handle interface {
	Seek(ctx context.Context, pos int64) error
	// Write 追加一块数据，返回写入后的累计位置
	Write(ctx context.Context, p []byte) (int64, error)
	// Close 刷新并释放句柄，写模式下返回最终的文件元数据
	Close(ctx context.Context) (*types.FileInfo, error)
	// Stream 从当前游标开始产出数据块
	Stream(ctx context.Context) ChunkReader
}

// ChunkReader 是后端的原生数据块生产者。
// 数据读完时 Next 返回 io.EOF。
type ChunkReader interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Lister 是可选能力：列出某个 root 下的所有文件
type Lister interface {
	List(ctx context.Context, root string) ([]types.FileInfo, error)
}
