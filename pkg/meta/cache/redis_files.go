package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"gridstream/pkg/meta"
)

// CachedFiles 是一个装饰器，为 meta.Files 加一层 Redis 读缓存。
// 按 ID 查询缓存整条记录 (CBOR 编码)，按文件名查询只缓存 "名字 → ID" 的映射。
type CachedFiles struct {
	backend meta.Files
	client  *redis.Client
	ttl     time.Duration
	log     *slog.Logger
}

var _ meta.Files = (*CachedFiles)(nil)

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedFiles(backend meta.Files, cfg Config) (*CachedFiles, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(backend, client, cfg.TTL), nil
}

func NewWithClient(backend meta.Files, client *redis.Client, ttl time.Duration) *CachedFiles {
	return &CachedFiles{backend: backend, client: client, ttl: ttl, log: slog.Default()}
}

func (c *CachedFiles) Close() error { return c.client.Close() }

func fileKey(root, id string) string   { return "gs:file:" + root + ":" + id }
func nameKey(root, name string) string { return "gs:name:" + root + ":" + name }

func (c *CachedFiles) Get(ctx context.Context, root, id string) (*meta.FileRecord, error) {
	key := fileKey(root, id)

	// 1. 查 Redis
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if rec, derr := decodeRecord(raw); derr == nil {
			return rec, nil
		}
		c.log.Warn("drop undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		// 缓存故障降级：Redis 挂了直接查数据库
		c.log.Warn("redis error", "err", err)
	}

	// 2. 未命中，查底层
	rec, err := c.backend.Get(ctx, root, id)
	if err != nil {
		return nil, err
	}

	// 3. 回填，返回前完成 (不能晚于之后的 Save)
	c.fill(ctx, key, rec)
	return rec, nil
}

func (c *CachedFiles) FindLatestByName(ctx context.Context, root, name string) (*meta.FileRecord, error) {
	key := nameKey(root, name)

	id, err := c.client.Get(ctx, key).Result()
	if err == nil {
		// 映射可能已经过期 (改名 / 删除)，校验一下文件名
		rec, gerr := c.Get(ctx, root, id)
		if gerr == nil && rec.Filename == name {
			return rec, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("redis error", "err", err)
	}

	rec, err := c.backend.FindLatestByName(ctx, root, name)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, rec.FileID, c.ttl).Err(); err != nil {
		c.log.Warn("cache fill failed", "key", key, "err", err)
	}
	return rec, nil
}

// FindByName 和 List 直接透传
func (c *CachedFiles) FindByName(ctx context.Context, root, name string) ([]meta.FileRecord, error) {
	return c.backend.FindByName(ctx, root, name)
}

func (c *CachedFiles) List(ctx context.Context, root string) ([]meta.FileRecord, error) {
	return c.backend.List(ctx, root)
}

// Save 先写数据库，再把新记录写进缓存 (write-through)。
// 名字映射只删除：同名的最新版本由数据库决定。
func (c *CachedFiles) Save(ctx context.Context, rec *meta.FileRecord) error {
	if err := c.backend.Save(ctx, rec); err != nil {
		return err
	}
	c.invalidate(ctx, nameKey(rec.Root, rec.Filename))
	c.fill(ctx, fileKey(rec.Root, rec.FileID), rec)
	return nil
}

func (c *CachedFiles) Delete(ctx context.Context, root, id string) error {
	if err := c.backend.Delete(ctx, root, id); err != nil {
		return err
	}
	c.invalidate(ctx, fileKey(root, id))
	return nil
}

func (c *CachedFiles) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
}

// fill 写入失败时删掉旧值，保证缓存里不会留下过期记录
func (c *CachedFiles) fill(ctx context.Context, key string, rec *meta.FileRecord) {
	raw, err := encodeRecord(rec)
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn("cache fill failed", "key", key, "err", err)
		c.invalidate(ctx, key)
	}
}

// entry 是缓存里的记录快照，整数 key 让编码更紧凑
type entry struct {
	Root        string `cbor:"1,keyasint"`
	FileID      string `cbor:"2,keyasint"`
	Native      bool   `cbor:"3,keyasint"`
	Filename    string `cbor:"4,keyasint"`
	ContentType string `cbor:"5,keyasint"`
	Length      int64  `cbor:"6,keyasint"`
	ChunkSize   int    `cbor:"7,keyasint"`
	UploadDate  int64  `cbor:"8,keyasint"` // unix nano
	Metadata    []byte `cbor:"9,keyasint,omitempty"`
	CreatedAt   int64  `cbor:"10,keyasint"`
	UpdatedAt   int64  `cbor:"11,keyasint"`
}

func encodeRecord(rec *meta.FileRecord) ([]byte, error) {
	return cbor.Marshal(entry{
		Root:        rec.Root,
		FileID:      rec.FileID,
		Native:      rec.Native,
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Length:      rec.Length,
		ChunkSize:   rec.ChunkSize,
		UploadDate:  rec.UploadDate.UnixNano(),
		Metadata:    rec.Metadata,
		CreatedAt:   rec.CreatedAt.UnixNano(),
		UpdatedAt:   rec.UpdatedAt.UnixNano(),
	})
}

func decodeRecord(raw []byte) (*meta.FileRecord, error) {
	var e entry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &meta.FileRecord{
		Root:        e.Root,
		FileID:      e.FileID,
		Native:      e.Native,
		Filename:    e.Filename,
		ContentType: e.ContentType,
		Length:      e.Length,
		ChunkSize:   e.ChunkSize,
		UploadDate:  time.Unix(0, e.UploadDate).UTC(),
		Metadata:    e.Metadata,
		CreatedAt:   time.Unix(0, e.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, e.UpdatedAt).UTC(),
	}, nil
}
