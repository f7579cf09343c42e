package meta

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"gridstream/pkg/types"
)

// FileRecord 是 files 集合里的一条文件记录。
// 块数据不在数据库里，由 storage.Store 按 "<root>/<file>/<n>" 存放。
type FileRecord struct {
	// (Root, FileID) 联合主键：不同 root 是互相独立的集合
	Root   string `gorm:"primaryKey;type:varchar(64)"`
	FileID string `gorm:"primaryKey;type:varchar(255)"`

	// Native 表示 FileID 是 uuid，否则是调用方给的原始 ID
	Native bool

	Filename    string `gorm:"index:idx_files_name;type:varchar(1024)"`
	ContentType string `gorm:"type:varchar(255)"`
	Length      int64
	ChunkSize   int
	UploadDate  time.Time `gorm:"index"`

	// Metadata: 用户自定义的任意 JSON
	Metadata datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FileRecord) TableName() string {
	return "files"
}

// ID 还原 FileID
func (r *FileRecord) ID() types.FileID {
	if r.Native {
		if id, ok := types.ParseFileID(r.FileID); ok {
			return id
		}
	}
	return types.RawFileID(r.FileID)
}

// Info 转换成对外的 FileInfo
func (r *FileRecord) Info() *types.FileInfo {
	info := &types.FileInfo{
		ID:          r.ID(),
		Root:        r.Root,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		Length:      r.Length,
		ChunkSize:   r.ChunkSize,
		UploadDate:  r.UploadDate,
	}
	if len(r.Metadata) > 0 {
		var md map[string]any
		if err := json.Unmarshal(r.Metadata, &md); err == nil {
			info.Metadata = md
		}
	}
	return info
}

// SetMetadata 把 map 序列化进 Metadata 列，nil 清空
func (r *FileRecord) SetMetadata(md map[string]any) error {
	if md == nil {
		r.Metadata = nil
		return nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	r.Metadata = datatypes.JSON(b)
	return nil
}
