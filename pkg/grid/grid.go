// Package grid 把分块存储后端适配成流：写流负责排队、懒打开、串行写入和排空后关闭；
// 读流负责打开、定位、区间截断、解码和带背压的投递。
package grid

import (
	"context"
	"fmt"
	"log/slog"

	"gridstream/pkg/types"
)

// Grid 是创建流和查询文件的入口
type Grid struct {
	backend Backend
	root    string
	log     *slog.Logger
}

type Option func(*Grid)

func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) { g.log = l }
}

func WithRoot(root string) Option {
	return func(g *Grid) { g.root = root }
}

func New(backend Backend, opts ...Option) (*Grid, error) {
	if backend == nil {
		return nil, ErrMissingBackend
	}
	g := &Grid{backend: backend, root: DefaultRoot, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.root == "" {
		g.root = DefaultRoot
	}
	return g, nil
}

// Collection 返回一个使用另一个 root 的 Grid，共享同一个后端。空串表示默认 root。
func (g *Grid) Collection(root string) *Grid {
	c := *g
	c.root = rootOr(root, "")
	return &c
}

func (g *Grid) Root() string { return g.root }

func (g *Grid) Backend() Backend { return g.backend }

// TryParseID 尝试把字符串解析成原生 ID；失败不是错误
func (g *Grid) TryParseID(s string) (types.FileID, bool) {
	return types.ParseFileID(s)
}

func (g *Grid) CreateWriteStream(ctx context.Context, opts Options, sopts ...StreamOption) *WriteStream {
	d := ResolveWrite(opts, g.root)
	return newWriteStream(ctx, g.backend, d, opts, g.log, sopts...)
}

func (g *Grid) CreateReadStream(ctx context.Context, opts Options, sopts ...StreamOption) *ReadStream {
	d := ResolveRead(opts, g.root)
	return newReadStream(ctx, g.backend, d, g.log, sopts...)
}

// Exist 查询文件是否存在。不存在返回 (false, nil)。
func (g *Grid) Exist(ctx context.Context, opts Options) (bool, error) {
	d := ResolveRead(opts, g.root)
	if !d.HasIdentity() {
		return false, ErrMissingIdentity
	}
	ok, err := g.backend.Exists(ctx, d)
	if err != nil {
		return false, fmt.Errorf("exist %q: %w", d.Identity(), err)
	}
	return ok, nil
}

func (g *Grid) Remove(ctx context.Context, opts Options) error {
	d := ResolveRead(opts, g.root)
	if !d.HasIdentity() {
		return ErrMissingIdentity
	}
	if err := g.backend.Remove(ctx, d); err != nil {
		return fmt.Errorf("remove %q: %w", d.Identity(), err)
	}
	g.log.Debug("file removed", "root", d.Root, "file", d.Identity())
	return nil
}

// Files 列出当前 root 下的文件，后端需要实现 Lister
func (g *Grid) Files(ctx context.Context) ([]types.FileInfo, error) {
	l, ok := g.backend.(Lister)
	if !ok {
		return nil, ErrNotSupported
	}
	return l.List(ctx, g.root)
}
