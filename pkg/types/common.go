// pkg/types/common.go
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileID 是文件的身份标识
// 要么是解析成功的原生 ID (uuid)，要么是调用方给出的任意原始值 (原样透传)。
// 零值表示 "没有 ID"。
type FileID struct {
	native uuid.UUID
	raw    string
	parsed bool
}

// NewFileID 生成一个新的原生 ID
func NewFileID() FileID { return FileID{native: uuid.New(), parsed: true} }

func FromUUID(u uuid.UUID) FileID { return FileID{native: u, parsed: true} }

// RawFileID 包装一个不透明的原始 ID，不做任何解析
func RawFileID(s string) FileID { return FileID{raw: s} }

// ParseFileID 尝试把字符串解析为原生 ID。
// 解析失败不是错误：返回 (零值, false)，调用方自行决定是否退化为原始 ID。
func ParseFileID(s string) (FileID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return FileID{}, false
	}
	return FromUUID(u), true
}

func (id FileID) IsZero() bool   { return !id.parsed && id.raw == "" }
func (id FileID) IsNative() bool { return id.parsed }

func (id FileID) UUID() (uuid.UUID, bool) { return id.native, id.parsed }

func (id FileID) String() string {
	if id.parsed {
		return id.native.String()
	}
	return id.raw
}

// Mode 是句柄的打开模式
type Mode string

const (
	ModeRead   Mode = "r"
	ModeWrite  Mode = "w"  // 截断重写
	ModeAppend Mode = "w+" // 追加
)

func (m Mode) IsWrite() bool { return m == ModeWrite || m == ModeAppend }

var ErrInvalidRange = errors.New("invalid byte range")

// ByteRange 描述读取区间，EndPos 为闭区间。
// Bounded 为 false 时读到文件末尾。
type ByteRange struct {
	StartPos int64
	EndPos   int64
	Bounded  bool
}

// NewRange 构造闭区间 [start, end]
func NewRange(start, end int64) ByteRange {
	return ByteRange{StartPos: start, EndPos: end, Bounded: true}
}

// From 构造 [start, EOF)
func From(start int64) ByteRange { return ByteRange{StartPos: start} }

func (r ByteRange) Validate() error {
	if r.StartPos < 0 {
		return fmt.Errorf("%w: negative start %d", ErrInvalidRange, r.StartPos)
	}
	if r.Bounded && r.EndPos < r.StartPos {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.EndPos, r.StartPos)
	}
	return nil
}

// Len 返回区间字节数，无上界时返回 -1
func (r ByteRange) Len() int64 {
	if !r.Bounded {
		return -1
	}
	return r.EndPos - r.StartPos + 1
}

func (r ByteRange) String() string {
	if !r.Bounded {
		return fmt.Sprintf("%d-", r.StartPos)
	}
	return fmt.Sprintf("%d-%d", r.StartPos, r.EndPos)
}

// FileInfo 是关闭句柄后得到的文件元数据快照
type FileInfo struct {
	ID          FileID
	Root        string
	Filename    string
	ContentType string
	Length      int64
	ChunkSize   int
	UploadDate  time.Time
	Metadata    map[string]any
}

// NumChunks 由长度和块大小推导
func (f *FileInfo) NumChunks() int64 {
	if f.ChunkSize <= 0 || f.Length == 0 {
		return 0
	}
	return (f.Length + int64(f.ChunkSize) - 1) / int64(f.ChunkSize)
}
