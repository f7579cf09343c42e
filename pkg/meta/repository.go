package meta

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrFileNotFound = errors.New("file record not found")

// Files 是 files 集合的全部操作，Repository 和缓存装饰器都实现它
type Files interface {
	Get(ctx context.Context, root, id string) (*FileRecord, error)
	FindLatestByName(ctx context.Context, root, name string) (*FileRecord, error)
	FindByName(ctx context.Context, root, name string) ([]FileRecord, error)
	Save(ctx context.Context, rec *FileRecord) error
	Delete(ctx context.Context, root, id string) error
	List(ctx context.Context, root string) ([]FileRecord, error)
}

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

var _ Files = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, root, id string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("root = ? AND file_id = ?", root, id).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindLatestByName 同名文件可能有多个版本，取最新上传的那个
func (r *Repository) FindLatestByName(ctx context.Context, root, name string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("root = ? AND filename = ?", root, name).
		Order("upload_date DESC").
		Order("created_at DESC").
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) FindByName(ctx context.Context, root, name string) ([]FileRecord, error) {
	var recs []FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("root = ? AND filename = ?", root, name).
		Order("upload_date DESC").
		Find(&recs).Error
	return recs, err
}

// Save 按 (root, file_id) 插入或整行覆盖
func (r *Repository) Save(ctx context.Context, rec *FileRecord) error {
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "root"}, {Name: "file_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save file record: %w", err)
	}
	return nil
}

// Delete 删除不存在的记录不算错误
func (r *Repository) Delete(ctx context.Context, root, id string) error {
	return r.db.GetConn().WithContext(ctx).
		Where("root = ? AND file_id = ?", root, id).
		Delete(&FileRecord{}).Error
}

func (r *Repository) List(ctx context.Context, root string) ([]FileRecord, error) {
	var recs []FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("root = ?", root).
		Order("upload_date ASC").
		Find(&recs).Error
	return recs, err
}
