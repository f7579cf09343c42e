package grid

import (
	"maps"
	"regexp"

	"gridstream/pkg/types"
)

const DefaultRoot = "fs"

var writeModePattern = regexp.MustCompile(`^w[+]?$`)

// Descriptor 是打开存储句柄所需的全部信息，构造后不再修改
type Descriptor struct {
	ID types.FileID
	// HasName 为 false 表示调用方没有给出文件名 (写入已有文件时保留原名)
	Name    string
	HasName bool
	Mode    types.Mode
	Root    string

	ContentType string
	ChunkSize   int
	Metadata    map[string]any
	Range       types.ByteRange
}

// Identity 优先返回 ID，否则返回文件名
func (d Descriptor) Identity() string {
	if !d.ID.IsZero() {
		return d.ID.String()
	}
	return d.Name
}

func (d Descriptor) HasIdentity() bool { return !d.ID.IsZero() || d.HasName }

// ResolveWrite 为写流生成描述符，永远不会失败：
// 没有 ID 时生成新 ID 且文件名默认为空串；mode 不合法时退化为追加。
func ResolveWrite(opts Options, root string) Descriptor {
	d := Descriptor{
		ID:          resolveID(opts.ID),
		Name:        opts.Filename,
		HasName:     opts.Filename != "",
		Mode:        opts.Mode,
		Root:        rootOr(opts.Root, root),
		ContentType: opts.ContentType,
		ChunkSize:   opts.ChunkSize,
		Metadata:    maps.Clone(opts.Metadata),
	}
	if d.ID.IsZero() {
		d.ID = types.NewFileID()
		d.HasName = true
	}
	if !writeModePattern.MatchString(string(d.Mode)) {
		d.Mode = types.ModeAppend
	}
	return d
}

// ResolveRead 为读流 / 查询生成描述符；缺少身份时不报错，留到 open 时失败
func ResolveRead(opts Options, root string) Descriptor {
	d := Descriptor{
		ID:      resolveID(opts.ID),
		Name:    opts.Filename,
		HasName: opts.Filename != "",
		Mode:    types.ModeRead,
		Root:    rootOr(opts.Root, root),
	}
	if opts.Range != nil {
		d.Range = *opts.Range
	}
	return d
}

func rootOr(root, fallback string) string {
	if root != "" {
		return root
	}
	if fallback != "" {
		return fallback
	}
	return DefaultRoot
}
